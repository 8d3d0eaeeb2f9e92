package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const (
	contextKeyCurrentProfile = "httpapi_current_profile"
	authErrorMissingBearer   = "Missing authorization"
	authErrorUnauthorized    = "Unauthorized"
	bearerPrefix             = "Bearer "
	logEventLoadProfile      = "load_profile"
)

// AuthManager resolves the bearer token of a request to a profile.
type AuthManager struct {
	database *gorm.DB
	logger   *zap.Logger
}

func NewAuthManager(database *gorm.DB, logger *zap.Logger) *AuthManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthManager{database: database, logger: logger}
}

func (authManager *AuthManager) RequireAuthenticatedJSON() gin.HandlerFunc {
	return func(context *gin.Context) {
		authorizationHeader := strings.TrimSpace(context.GetHeader("Authorization"))
		if !strings.HasPrefix(authorizationHeader, bearerPrefix) {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorMissingBearer})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(authorizationHeader, bearerPrefix))
		if token == "" {
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorMissingBearer})
			return
		}

		var profile model.Profile
		err := authManager.database.WithContext(context.Request.Context()).Where("access_token = ?", token).Take(&profile).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				authManager.logger.Warn(logEventLoadProfile, zap.Error(err))
			}
			context.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
			return
		}
		context.Set(contextKeyCurrentProfile, &profile)
		context.Next()
	}
}

func CurrentProfileFromContext(context *gin.Context) (*model.Profile, bool) {
	value, exists := context.Get(contextKeyCurrentProfile)
	if !exists {
		return nil, false
	}
	profile, ok := value.(*model.Profile)
	return profile, ok
}

// requireProfile writes a 401 and reports false when the middleware did not run.
func requireProfile(context *gin.Context) (*model.Profile, bool) {
	profile, ok := CurrentProfileFromContext(context)
	if !ok {
		context.JSON(http.StatusUnauthorized, gin.H{jsonKeyError: authErrorUnauthorized})
		return nil, false
	}
	return profile, true
}
