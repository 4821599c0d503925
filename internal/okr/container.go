package okr

import (
	"gorm.io/gorm"

	"github.com/saulo-duarte/okr-progress/internal/keyresult"
	"github.com/saulo-duarte/okr-progress/internal/objective"
	"github.com/saulo-duarte/okr-progress/internal/progress"
)

type OKRContainer struct {
	Handler *Handler
	Service Service
}

func NewOKRContainer(db *gorm.DB, opts ...Option) *OKRContainer {
	ledger := progress.NewLedger(db)
	krRepo := keyresult.NewRepository(db, ledger)
	objRepo := objective.NewRepository(db, krRepo)
	service := NewService(db, objRepo, krRepo, ledger, opts...)
	handler := NewHandler(service)

	return &OKRContainer{
		Handler: handler,
		Service: service,
	}
}

// Migrate creates or updates the tables backing the objectives, key results
// and the progress ledger.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&objective.Objective{}, &keyresult.KeyResult{}, &progress.ProgressUpdate{})
}
