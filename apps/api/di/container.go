// Package di wires the API dependencies in a dig.Container.
package di

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/checkout"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/identity"
	"github.com/trezcool/academia/core/like"
	"github.com/trezcool/academia/core/payment"
	"github.com/trezcool/academia/core/student"
	emailsvc "github.com/trezcool/academia/services/email"
	eventsvc "github.com/trezcool/academia/services/events"
	"github.com/trezcool/academia/services/identity/google"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/storage/cache"
	"github.com/trezcool/academia/storage/docstore"
	docrepos "github.com/trezcool/academia/storage/docstore/repos"
)

const connectTimeout = 30 * time.Second

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	checkoutParams struct {
		dig.In
		Courses     *course.Service
		Payments    *payment.Service
		Enrollments *enrollment.Service
		Students    *student.Service
		MailSvc     core.EmailService
		Logger      core.Logger
	}

	serverParams struct {
		dig.In
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		CourseSvc     *course.Service
		StudentSvc    *student.Service
		PaymentSvc    *payment.Service
		EnrollmentSvc *enrollment.Service
		LikeSvc       *like.Service
		CheckoutSvc   *checkout.Service
		Provider      identity.Provider
	}
)

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newStore(conf *core.Config, loggerParam DBLoggerParam) (core.DocumentStore, core.Transactor) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	store, err := docstore.Open(ctx, conf, loggerParam.Logger)
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up document store: %v", err), err)
	}
	return store, store
}

// newCatalogCache returns no cache when redis is not configured.
func newCatalogCache(conf *core.Config, logger core.Logger) course.Cache {
	if conf.Redis.Address == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := cache.NewClient(ctx, conf.Redis.Address)
	if err != nil {
		logger.Warn(fmt.Sprintf("catalog cache disabled: %v", err), err)
		return nil
	}
	return cache.NewCatalogCache(client, conf.Redis.CatalogTTL)
}

func newEventPublisher(conf *core.Config, logger core.Logger) core.EventPublisher {
	if conf.RabbitMQ.URL == "" {
		return eventsvc.NewLogPublisher(logger)
	}
	pub, err := eventsvc.NewRabbitPublisher(conf.RabbitMQ.URL, conf.RabbitMQ.Exchange, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up event publisher: %v", err), err)
	}
	return pub
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newIdentityProvider(conf *core.Config) identity.Provider {
	return google.NewProvider(conf)
}

func newPaymentProcessor() payment.Processor {
	return payment.MockProcessor{}
}

func newCheckoutService(p checkoutParams) *checkout.Service {
	return checkout.NewService(checkout.Options{
		Courses:     p.Courses,
		Payments:    p.Payments,
		Enrollments: p.Enrollments,
		Students:    p.Students,
		MailSvc:     p.MailSvc,
		Logger:      p.Logger,
	})
}

func newCourseGetter(svc *course.Service) enrollment.CourseGetter {
	return svc
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		CourseSvc:     p.CourseSvc,
		StudentSvc:    p.StudentSvc,
		PaymentSvc:    p.PaymentSvc,
		EnrollmentSvc: p.EnrollmentSvc,
		LikeSvc:       p.LikeSvc,
		CheckoutSvc:   p.CheckoutSvc,
		Provider:      p.Provider,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStore))
	must(c.Provide(newCatalogCache))
	must(c.Provide(newEventPublisher))
	must(c.Provide(newEmailService))
	must(c.Provide(newIdentityProvider))
	must(c.Provide(newPaymentProcessor))

	must(c.Provide(docrepos.NewCourseRepository, dig.As(new(course.Repository))))
	must(c.Provide(docrepos.NewStudentRepository, dig.As(new(student.Repository))))
	must(c.Provide(docrepos.NewPaymentRepository, dig.As(new(payment.Repository))))
	must(c.Provide(docrepos.NewEnrollmentRepository, dig.As(new(enrollment.Repository))))
	must(c.Provide(docrepos.NewLikeRepository, dig.As(new(like.Repository))))

	must(c.Provide(course.NewService))
	must(c.Provide(newCourseGetter))
	must(c.Provide(student.NewService))
	must(c.Provide(payment.NewService))
	must(c.Provide(enrollment.NewInFlightSet))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(like.NewService))
	must(c.Provide(newCheckoutService))

	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
