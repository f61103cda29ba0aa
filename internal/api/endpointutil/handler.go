package endpointutil

import (
	"github.com/gorilla/mux"
	"github.com/jinzhu/gorm"
	"github.com/platformplatform/account-api/internal/shared/apperrors"
	"github.com/platformplatform/account-api/internal/shared/config"
	"github.com/platformplatform/account-api/internal/shared/logutil"
	"github.com/platformplatform/account-api/internal/shared/metrics"
	"github.com/platformplatform/account-api/pkg/api/auth"
)

type HandlerRegContext struct {
	Router     *mux.Router
	Authorizer *auth.Authorizer
	Log        logutil.Log
	ErrTracker apperrors.Tracker
	Cfg        config.Config
	DB         *gorm.DB
	Metrics    *metrics.Metrics
}
