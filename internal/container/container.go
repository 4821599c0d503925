package container

import (
	"context"
	"log"

	"github.com/saulo-duarte/okr-progress/internal/auth"
	"github.com/saulo-duarte/okr-progress/internal/config"
	"github.com/saulo-duarte/okr-progress/internal/okr"
)

type Container struct {
	Settings     config.Settings
	OKRContainer *okr.OKRContainer
}

// New wires the HTTP application. It requires JWT_SECRET.
func New() *Container {
	config.Init()
	auth.Init()
	return build()
}

// NewWorker wires the background processes, which need no authentication.
func NewWorker() *Container {
	config.Init()
	return build()
}

func build() *Container {
	settings := config.LoadSettings()

	if err := config.Connect(context.Background(), settings); err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	if err := okr.Migrate(config.DB); err != nil {
		log.Fatalf("failed to migrate DB: %v", err)
	}

	okrContainer := okr.NewOKRContainer(config.DB, okr.WithMaxRetries(settings.MaxRetries))

	return &Container{
		Settings:     settings,
		OKRContainer: okrContainer,
	}
}
