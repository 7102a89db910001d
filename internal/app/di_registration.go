package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/campushq/registration/internal/registration/generator"
	registrationHTTP "github.com/campushq/registration/internal/registration/http"
	registrationRepository "github.com/campushq/registration/internal/registration/repository"
	registrationUsecase "github.com/campushq/registration/internal/registration/usecase"
)

// TaskTopic is the broker topic registration tasks are published to and
// consumed from.
const TaskTopic = "registration.tasks"

// registrationOnce groups the lazy-init guards for the registration feature.
type registrationOnce struct {
	applicationRepo sync.Once
	studentRepo     sync.Once
	progressRepo    sync.Once
	broadcaster     sync.Once
	progressUseCase sync.Once
	stepExecutor    sync.Once
	consumerUseCase sync.Once
	timeoutScanner  sync.Once
	approvalUseCase sync.Once
	progressHandler sync.Once
	approvalHandler sync.Once
}

// registrationComponents holds the lazily created registration feature instances.
type registrationComponents struct {
	applicationRepo registrationUsecase.ApplicationRepository
	studentRepo     registrationUsecase.StudentRepository
	progressRepo    registrationUsecase.ProgressRepository
	broadcaster     *registrationUsecase.Broadcaster
	progressUseCase registrationUsecase.ProgressUseCase
	stepExecutor    *registrationUsecase.StepExecutor
	consumerUseCase *registrationUsecase.ConsumerUseCase
	timeoutScanner  *registrationUsecase.TimeoutScanner
	approvalUseCase *registrationUsecase.ApprovalUseCase
	progressHandler *registrationHTTP.ProgressHandler
	approvalHandler *registrationHTTP.ApprovalHandler
}

// ApplicationRepository returns the application repository instance.
func (c *Container) ApplicationRepository() (registrationUsecase.ApplicationRepository, error) {
	c.registrationInit.applicationRepo.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["applicationRepo"] = fmt.Errorf("failed to get database for application repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.registration.applicationRepo = registrationRepository.NewMySQLApplicationRepository(db)
		case "postgres":
			c.registration.applicationRepo = registrationRepository.NewPostgreSQLApplicationRepository(db)
		default:
			c.initErrors["applicationRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["applicationRepo"]; exists {
		return nil, storedErr
	}
	return c.registration.applicationRepo, nil
}

// StudentRepository returns the student repository instance.
func (c *Container) StudentRepository() (registrationUsecase.StudentRepository, error) {
	c.registrationInit.studentRepo.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["studentRepo"] = fmt.Errorf("failed to get database for student repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.registration.studentRepo = registrationRepository.NewMySQLStudentRepository(db)
		case "postgres":
			c.registration.studentRepo = registrationRepository.NewPostgreSQLStudentRepository(db)
		default:
			c.initErrors["studentRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["studentRepo"]; exists {
		return nil, storedErr
	}
	return c.registration.studentRepo, nil
}

// ProgressRepository returns the task progress repository instance.
func (c *Container) ProgressRepository() (registrationUsecase.ProgressRepository, error) {
	c.registrationInit.progressRepo.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["progressRepo"] = fmt.Errorf("failed to get database for progress repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql":
			c.registration.progressRepo = registrationRepository.NewMySQLProgressRepository(db)
		case "postgres":
			c.registration.progressRepo = registrationRepository.NewPostgreSQLProgressRepository(db)
		default:
			c.initErrors["progressRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["progressRepo"]; exists {
		return nil, storedErr
	}
	return c.registration.progressRepo, nil
}

// Broadcaster returns the shared in-process progress broadcaster.
func (c *Container) Broadcaster() *registrationUsecase.Broadcaster {
	c.registrationInit.broadcaster.Do(func() {
		c.registration.broadcaster = registrationUsecase.NewBroadcaster()
	})
	return c.registration.broadcaster
}

// ProgressUseCase returns the task progress use case instance.
func (c *Container) ProgressUseCase() (registrationUsecase.ProgressUseCase, error) {
	c.registrationInit.progressUseCase.Do(func() {
		progressRepo, err := c.ProgressRepository()
		if err != nil {
			c.initErrors["progressUseCase"] = fmt.Errorf("failed to get progress repository for progress use case: %w", err)
			return
		}

		c.registration.progressUseCase = registrationUsecase.NewTaskProgressUseCase(
			progressRepo, c.Broadcaster(), c.Logger())
	})
	if storedErr, exists := c.initErrors["progressUseCase"]; exists {
		return nil, storedErr
	}
	return c.registration.progressUseCase, nil
}

// StepExecutor returns the generation step executor instance.
func (c *Container) StepExecutor() (*registrationUsecase.StepExecutor, error) {
	c.registrationInit.stepExecutor.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["stepExecutor"] = fmt.Errorf("failed to get tx manager for step executor: %w", err)
			return
		}

		studentRepo, err := c.StudentRepository()
		if err != nil {
			c.initErrors["stepExecutor"] = fmt.Errorf("failed to get student repository for step executor: %w", err)
			return
		}

		progress, err := c.ProgressUseCase()
		if err != nil {
			c.initErrors["stepExecutor"] = fmt.Errorf("failed to get progress use case for step executor: %w", err)
			return
		}

		pipeline, err := c.PipelineMetrics()
		if err != nil {
			c.initErrors["stepExecutor"] = fmt.Errorf("failed to get pipeline metrics for step executor: %w", err)
			return
		}

		c.registration.stepExecutor = registrationUsecase.NewStepExecutor(
			txManager,
			studentRepo,
			progress,
			generator.NewRulesIdentityGenerator(uint64(time.Now().UnixNano())), // #nosec G115 -- seed only
			generator.NewTemplateEnrichmentGenerator(),
			generator.NewRefPhotoGenerator(),
			c.Logger(),
			pipeline,
		)
	})
	if storedErr, exists := c.initErrors["stepExecutor"]; exists {
		return nil, storedErr
	}
	return c.registration.stepExecutor, nil
}

// ConsumerUseCase returns the task consumer use case instance.
func (c *Container) ConsumerUseCase() (*registrationUsecase.ConsumerUseCase, error) {
	c.registrationInit.consumerUseCase.Do(func() {
		consumer, err := c.Broker()
		if err != nil {
			c.initErrors["consumerUseCase"] = fmt.Errorf("failed to get broker for consumer use case: %w", err)
			return
		}

		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["consumerUseCase"] = fmt.Errorf("failed to get tx manager for consumer use case: %w", err)
			return
		}

		applicationRepo, err := c.ApplicationRepository()
		if err != nil {
			c.initErrors["consumerUseCase"] = fmt.Errorf("failed to get application repository for consumer use case: %w", err)
			return
		}

		studentRepo, err := c.StudentRepository()
		if err != nil {
			c.initErrors["consumerUseCase"] = fmt.Errorf("failed to get student repository for consumer use case: %w", err)
			return
		}

		progress, err := c.ProgressUseCase()
		if err != nil {
			c.initErrors["consumerUseCase"] = fmt.Errorf("failed to get progress use case for consumer use case: %w", err)
			return
		}

		executor, err := c.StepExecutor()
		if err != nil {
			c.initErrors["consumerUseCase"] = fmt.Errorf("failed to get step executor for consumer use case: %w", err)
			return
		}

		outbox, err := c.OutboxUseCase()
		if err != nil {
			c.initErrors["consumerUseCase"] = fmt.Errorf("failed to get outbox use case for consumer use case: %w", err)
			return
		}

		pipeline, err := c.PipelineMetrics()
		if err != nil {
			c.initErrors["consumerUseCase"] = fmt.Errorf("failed to get pipeline metrics for consumer use case: %w", err)
			return
		}

		c.registration.consumerUseCase = registrationUsecase.NewConsumerUseCase(
			registrationUsecase.ConsumerConfig{
				Topic:       TaskTopic,
				MaxRetries:  c.config.ConsumerMaxRetries,
				TaskTimeout: c.config.TaskTimeout,
			},
			consumer,
			txManager,
			applicationRepo,
			studentRepo,
			progress,
			executor,
			outbox,
			c.Logger(),
			pipeline,
		)
	})
	if storedErr, exists := c.initErrors["consumerUseCase"]; exists {
		return nil, storedErr
	}
	return c.registration.consumerUseCase, nil
}

// TimeoutScanner returns the stuck-task scanner instance.
func (c *Container) TimeoutScanner() (*registrationUsecase.TimeoutScanner, error) {
	c.registrationInit.timeoutScanner.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["timeoutScanner"] = fmt.Errorf("failed to get tx manager for timeout scanner: %w", err)
			return
		}

		applicationRepo, err := c.ApplicationRepository()
		if err != nil {
			c.initErrors["timeoutScanner"] = fmt.Errorf("failed to get application repository for timeout scanner: %w", err)
			return
		}

		studentRepo, err := c.StudentRepository()
		if err != nil {
			c.initErrors["timeoutScanner"] = fmt.Errorf("failed to get student repository for timeout scanner: %w", err)
			return
		}

		progressRepo, err := c.ProgressRepository()
		if err != nil {
			c.initErrors["timeoutScanner"] = fmt.Errorf("failed to get progress repository for timeout scanner: %w", err)
			return
		}

		progress, err := c.ProgressUseCase()
		if err != nil {
			c.initErrors["timeoutScanner"] = fmt.Errorf("failed to get progress use case for timeout scanner: %w", err)
			return
		}

		outbox, err := c.OutboxUseCase()
		if err != nil {
			c.initErrors["timeoutScanner"] = fmt.Errorf("failed to get outbox use case for timeout scanner: %w", err)
			return
		}

		pipeline, err := c.PipelineMetrics()
		if err != nil {
			c.initErrors["timeoutScanner"] = fmt.Errorf("failed to get pipeline metrics for timeout scanner: %w", err)
			return
		}

		c.registration.timeoutScanner = registrationUsecase.NewTimeoutScanner(
			registrationUsecase.ScannerConfig{
				Interval:     c.config.ScannerInterval,
				InitialDelay: c.config.ScannerInitialDelay,
				TaskTimeout:  c.config.TaskTimeout,
				MaxRetries:   c.config.ConsumerMaxRetries,
			},
			txManager,
			applicationRepo,
			studentRepo,
			progressRepo,
			progress,
			c.Broadcaster(),
			outbox,
			c.Logger(),
			pipeline,
		)
	})
	if storedErr, exists := c.initErrors["timeoutScanner"]; exists {
		return nil, storedErr
	}
	return c.registration.timeoutScanner, nil
}

// ApprovalUseCase returns the approval use case instance.
func (c *Container) ApprovalUseCase() (*registrationUsecase.ApprovalUseCase, error) {
	c.registrationInit.approvalUseCase.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["approvalUseCase"] = fmt.Errorf("failed to get tx manager for approval use case: %w", err)
			return
		}

		applicationRepo, err := c.ApplicationRepository()
		if err != nil {
			c.initErrors["approvalUseCase"] = fmt.Errorf("failed to get application repository for approval use case: %w", err)
			return
		}

		progress, err := c.ProgressUseCase()
		if err != nil {
			c.initErrors["approvalUseCase"] = fmt.Errorf("failed to get progress use case for approval use case: %w", err)
			return
		}

		outbox, err := c.OutboxUseCase()
		if err != nil {
			c.initErrors["approvalUseCase"] = fmt.Errorf("failed to get outbox use case for approval use case: %w", err)
			return
		}

		c.registration.approvalUseCase = registrationUsecase.NewApprovalUseCase(
			txManager, applicationRepo, progress, outbox, c.Logger())
	})
	if storedErr, exists := c.initErrors["approvalUseCase"]; exists {
		return nil, storedErr
	}
	return c.registration.approvalUseCase, nil
}

// ProgressHandler returns the progress HTTP handler instance.
func (c *Container) ProgressHandler() (*registrationHTTP.ProgressHandler, error) {
	c.registrationInit.progressHandler.Do(func() {
		progress, err := c.ProgressUseCase()
		if err != nil {
			c.initErrors["progressHandler"] = fmt.Errorf("failed to get progress use case for progress handler: %w", err)
			return
		}

		c.registration.progressHandler = registrationHTTP.NewProgressHandler(progress, c.Logger())
	})
	if storedErr, exists := c.initErrors["progressHandler"]; exists {
		return nil, storedErr
	}
	return c.registration.progressHandler, nil
}

// ApprovalHandler returns the approval HTTP handler instance.
func (c *Container) ApprovalHandler() (*registrationHTTP.ApprovalHandler, error) {
	c.registrationInit.approvalHandler.Do(func() {
		approvalUseCase, err := c.ApprovalUseCase()
		if err != nil {
			c.initErrors["approvalHandler"] = fmt.Errorf("failed to get approval use case for approval handler: %w", err)
			return
		}

		c.registration.approvalHandler = registrationHTTP.NewApprovalHandler(approvalUseCase, c.Logger())
	})
	if storedErr, exists := c.initErrors["approvalHandler"]; exists {
		return nil, storedErr
	}
	return c.registration.approvalHandler, nil
}
