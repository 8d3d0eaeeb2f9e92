package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/ingest"
	"github.com/MarkoPoloResearchLab/reviu/internal/storage"
	"github.com/MarkoPoloResearchLab/reviu/internal/summary"
)

const (
	commandUseName                = "server"
	commandShortDescription       = "Run the design feedback server"
	commandLongDescription        = "Launch the HTTP server that collects design feedback from the web, Figma and Slack"
	invalidConfigurationMessage   = "invalid configuration"
	loggerCreationErrorMessage    = "logger"
	logEventListening             = "listening"
	logEventShutdown              = "shutdown"
	logFieldAddress               = "addr"
	loggerContextOpenDatabase     = "open_db"
	loggerContextAutoMigrate      = "migrate"
	loggerContextServer           = "server"
	readHeaderTimeoutSeconds      = 5
	shutdownTimeout               = 10 * time.Second
	unexpectedArgumentsMessage    = "unexpected command arguments"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"

	environmentKeyApplicationAddress   = "APP_ADDR"
	environmentKeyDatabaseDriver       = "DB_DRIVER"
	environmentKeyDatabaseDataSource   = "DB_DSN"
	environmentKeyPublicBaseURL        = "PUBLIC_BASE_URL"
	environmentKeyAppURL               = "APP_URL"
	environmentKeyOpenAIAPIKey         = "OPENAI_API_KEY"
	environmentKeyOpenAIModel          = "OPENAI_MODEL"
	environmentKeyOpenAIBaseURL        = "OPENAI_BASE_URL"
	environmentKeySlackClientID        = "SLACK_CLIENT_ID"
	environmentKeySlackClientSecret    = "SLACK_CLIENT_SECRET"
	environmentKeySlackSigningSecret   = "SLACK_SIGNING_SECRET"
	environmentKeySlackRouting         = "SLACK_ROUTING"
	environmentKeyFigmaClientID        = "FIGMA_CLIENT_ID"
	environmentKeyFigmaClientSecret    = "FIGMA_CLIENT_SECRET"
	environmentKeyFigmaWebhookPasscode = "FIGMA_WEBHOOK_PASSCODE"
	environmentKeyNotificationTimeout  = "NOTIFICATION_TIMEOUT"

	flagNameApplicationAddress     = "app-addr"
	flagNameDatabaseDriver         = "db-driver"
	flagNameDatabaseDataSourceName = "db-dsn"

	defaultApplicationAddress  = ":8080"
	defaultAppURL              = "http://localhost:5173"
	defaultNotificationTimeout = "10s"
)

// configurationFlag binds one environment key to a command flag.
type configurationFlag struct {
	environmentKey string
	flagName       string
	defaultValue   string
	usage          string
}

var configurationFlags = []configurationFlag{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress, defaultValue: defaultApplicationAddress, usage: "address for the HTTP server to listen on"},
	{environmentKey: environmentKeyDatabaseDriver, flagName: flagNameDatabaseDriver, defaultValue: storage.DriverNameSQLite, usage: "database driver (sqlite or postgres)"},
	{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName, usage: "database connection string"},
	{environmentKey: environmentKeyPublicBaseURL, flagName: "public-base-url", usage: "public URL of this server, used for OAuth callbacks"},
	{environmentKey: environmentKeyAppURL, flagName: "app-url", defaultValue: defaultAppURL, usage: "frontend URL to return to after connecting an integration"},
	{environmentKey: environmentKeyOpenAIAPIKey, flagName: "openai-api-key", usage: "API key for AI summaries; summaries use the local digest when empty"},
	{environmentKey: environmentKeyOpenAIModel, flagName: "openai-model", defaultValue: summary.DefaultModel, usage: "chat model used for AI summaries"},
	{environmentKey: environmentKeyOpenAIBaseURL, flagName: "openai-base-url", usage: "base URL of an OpenAI-compatible endpoint"},
	{environmentKey: environmentKeySlackClientID, flagName: "slack-client-id", usage: "Slack app client id"},
	{environmentKey: environmentKeySlackClientSecret, flagName: "slack-client-secret", usage: "Slack app client secret"},
	{environmentKey: environmentKeySlackSigningSecret, flagName: "slack-signing-secret", usage: "Slack signing secret; event signatures are verified when set"},
	{environmentKey: environmentKeySlackRouting, flagName: "slack-routing", defaultValue: string(ingest.SlackRoutingComment), usage: "what a Slack message becomes (comment or board)"},
	{environmentKey: environmentKeyFigmaClientID, flagName: "figma-client-id", usage: "Figma OAuth client id"},
	{environmentKey: environmentKeyFigmaClientSecret, flagName: "figma-client-secret", usage: "Figma OAuth client secret"},
	{environmentKey: environmentKeyFigmaWebhookPasscode, flagName: "figma-webhook-passcode", usage: "passcode Figma webhooks must carry when set"},
	{environmentKey: environmentKeyNotificationTimeout, flagName: "notification-timeout", defaultValue: defaultNotificationTimeout, usage: "upper bound for one comment notification"},
}

// ServerConfig captures configuration needed to run the server.
type ServerConfig struct {
	ApplicationAddress     string        `json:"app-addr"`
	DatabaseDriverName     string        `json:"db-driver"`
	DatabaseDataSourceName string        `json:"db-dsn"`
	PublicBaseURL          string        `json:"public-base-url"`
	AppURL                 string        `json:"app-url"`
	OpenAIAPIKey           string        `json:"openai-api-key"`
	OpenAIModel            string        `json:"openai-model"`
	OpenAIBaseURL          string        `json:"openai-base-url"`
	SlackClientID          string        `json:"slack-client-id"`
	SlackClientSecret      string        `json:"slack-client-secret"`
	SlackSigningSecret     string        `json:"slack-signing-secret"`
	SlackRouting           string        `json:"slack-routing"`
	FigmaClientID          string        `json:"figma-client-id"`
	FigmaClientSecret      string        `json:"figma-client-secret"`
	FigmaWebhookPasscode   string        `json:"figma-webhook-passcode"`
	NotificationTimeout    time.Duration `json:"notification-timeout"`
}

// Validate checks required values and enumerations.
func (config ServerConfig) Validate() error {
	return validation.ValidateStruct(&config,
		validation.Field(&config.ApplicationAddress, validation.Required),
		validation.Field(&config.DatabaseDriverName, validation.Required, validation.In(storage.DriverNameSQLite, storage.DriverNamePostgres)),
		validation.Field(&config.DatabaseDataSourceName, validation.Required),
		validation.Field(&config.SlackRouting, validation.In(string(ingest.SlackRoutingComment), string(ingest.SlackRoutingBoard))),
		validation.Field(&config.NotificationTimeout, validation.Min(time.Duration(0))),
	)
}

// DatabaseOpener opens a database connection using the provided storage configuration.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// ServerApplication constructs and executes the server command.
type ServerApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
}

// NewServerApplication creates a ServerApplication with default dependencies.
func NewServerApplication() *ServerApplication {
	return &ServerApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *ServerApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *ServerApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the server.
func (application *ServerApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:   commandUseName,
		Short: commandShortDescription,
		Long:  commandLongDescription,
		RunE:  application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *ServerApplication) configureCommand(command *cobra.Command) error {
	application.configurationLoader.AutomaticEnv()
	commandFlags := command.Flags()

	for _, definition := range configurationFlags {
		application.configurationLoader.SetDefault(definition.environmentKey, definition.defaultValue)
		commandFlags.String(definition.flagName, definition.defaultValue, definition.usage)

		if bindErr := application.bindFlag(commandFlags, definition.environmentKey, definition.flagName); bindErr != nil {
			return bindErr
		}
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, definition.environmentKey, definition.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return nil
}

func (application *ServerApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *ServerApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

// loadServerConfig reads every key through viper so flags, environment and .env values resolve in one place.
func (application *ServerApplication) loadServerConfig() ServerConfig {
	loader := application.configurationLoader
	readString := func(key string) string {
		return strings.TrimSpace(loader.GetString(key))
	}
	return ServerConfig{
		ApplicationAddress:     readString(environmentKeyApplicationAddress),
		DatabaseDriverName:     strings.ToLower(readString(environmentKeyDatabaseDriver)),
		DatabaseDataSourceName: readString(environmentKeyDatabaseDataSource),
		PublicBaseURL:          strings.TrimRight(readString(environmentKeyPublicBaseURL), "/"),
		AppURL:                 readString(environmentKeyAppURL),
		OpenAIAPIKey:           readString(environmentKeyOpenAIAPIKey),
		OpenAIModel:            readString(environmentKeyOpenAIModel),
		OpenAIBaseURL:          readString(environmentKeyOpenAIBaseURL),
		SlackClientID:          readString(environmentKeySlackClientID),
		SlackClientSecret:      readString(environmentKeySlackClientSecret),
		SlackSigningSecret:     readString(environmentKeySlackSigningSecret),
		SlackRouting:           strings.ToLower(readString(environmentKeySlackRouting)),
		FigmaClientID:          readString(environmentKeyFigmaClientID),
		FigmaClientSecret:      readString(environmentKeyFigmaClientSecret),
		FigmaWebhookPasscode:   readString(environmentKeyFigmaWebhookPasscode),
		NotificationTimeout:    loader.GetDuration(environmentKeyNotificationTimeout),
	}
}

func (application *ServerApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	serverConfig := application.loadServerConfig()
	if validationErr := serverConfig.Validate(); validationErr != nil {
		return fmt.Errorf("%s: %w", invalidConfigurationMessage, validationErr)
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	database, databaseErr := application.databaseOpener(storage.Config{
		DriverName:     serverConfig.DatabaseDriverName,
		DataSourceName: serverConfig.DatabaseDataSourceName,
	})
	if databaseErr != nil {
		logger.Error(loggerContextOpenDatabase, zap.Error(databaseErr))
		return databaseErr
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Error(loggerContextAutoMigrate, zap.Error(migrateErr))
		return migrateErr
	}

	services, servicesErr := newServiceGraph(serverConfig, database, logger)
	if servicesErr != nil {
		return servicesErr
	}
	router := newRouter(services, logger)

	httpServer := &http.Server{
		Addr:              serverConfig.ApplicationAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeoutSeconds * time.Second,
	}

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	group, groupContext := errgroup.WithContext(signalContext)

	group.Go(func() error {
		logger.Info(logEventListening, zap.String(logFieldAddress, serverConfig.ApplicationAddress))
		if serveErr := httpServer.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error(loggerContextServer, zap.Error(serveErr))
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-groupContext.Done()
		logger.Info(logEventShutdown)
		shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := httpServer.Shutdown(shutdownContext)
		services.dispatcher.Wait()
		return shutdownErr
	})

	return group.Wait()
}

func main() {
	application := NewServerApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
