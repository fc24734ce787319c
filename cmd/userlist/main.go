package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dspsync/userlist/scim"
	"github.com/dspsync/userlist/secrets"
	"github.com/dspsync/userlist/service"
	"github.com/dspsync/userlist/store"
)

func main() {
	addr := flag.String("addr", ":8080", "Address to listen on")
	dbDriver := flag.String("db-driver", "sqlite3", "Database driver (sqlite3 or postgres)")
	dbDSN := flag.String("db-dsn", "userlist.db", "Database connection string")
	flag.Parse()

	if os.Getenv("USERLIST_LOG_FORMAT") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(os.Getenv("USERLIST_LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	ctx := context.Background()

	provider, err := secretProvider()
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize secret backend")
	}
	resolver := secrets.NewResolver(provider)

	cfg, err := resolver.SCIMConfig(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to resolve SCIM credentials")
	}

	st, err := store.Open(ctx, *dbDriver, *dbDSN)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open database")
	}
	defer st.Close()
	if err := st.Init(ctx); err != nil {
		logrus.WithError(err).Fatal("failed to initialize schema")
	}

	client := scim.NewClient(scim.Endpoint{
		TokenURL:     cfg.TokenURL,
		BaseURL:      cfg.APIBaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, nil)
	syncer := service.NewSyncer(client, st)
	server := service.NewServer(client, syncer)

	if schedule := os.Getenv("USERLIST_SYNC_SCHEDULE"); schedule != "" {
		scheduler := cron.New()
		if _, err := scheduler.AddFunc(schedule, func() { runScheduledSync(ctx, syncer) }); err != nil {
			logrus.WithError(err).Fatal("invalid sync schedule")
		}
		scheduler.Start()
		defer scheduler.Stop()
		logrus.WithField("schedule", schedule).Info("scheduled sync enabled")
	}

	logrus.WithField("addr", *addr).Info("starting userlist service")
	if err := http.ListenAndServe(*addr, server); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

// secretProvider picks the backend from USERLIST_SECRET_BACKEND:
// env (default), credstore or ksm.
func secretProvider() (secrets.Provider, error) {
	switch os.Getenv("USERLIST_SECRET_BACKEND") {
	case "", "env":
		return secrets.EnvProvider{}, nil
	case "credstore":
		binding, err := secrets.BindingFromEnv()
		if err != nil {
			return nil, err
		}
		return secrets.NewCredStoreProvider(binding, os.Getenv("USERLIST_CREDSTORE_NAMESPACE"), nil), nil
	case "ksm":
		return secrets.NewKSMProviderFromEnv()
	default:
		return nil, &unknownBackendError{os.Getenv("USERLIST_SECRET_BACKEND")}
	}
}

type unknownBackendError struct {
	backend string
}

func (e *unknownBackendError) Error() string {
	return "unknown secret backend " + e.backend
}

func runScheduledSync(ctx context.Context, syncer *service.Syncer) {
	if _, err := syncer.SyncUsers(ctx); err != nil {
		logrus.WithError(err).Error("scheduled user sync failed")
		return
	}
	if _, err := syncer.SyncRoles(ctx); err != nil {
		logrus.WithError(err).Error("scheduled role sync failed")
		return
	}
	if _, err := syncer.SyncUserRoles(ctx); err != nil {
		logrus.WithError(err).Error("scheduled user-role sync failed")
	}
}
