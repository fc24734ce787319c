package userlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/cloudevents/sdk-go/v2/event"

	"github.com/dspsync/userlist/scim"
	"github.com/dspsync/userlist/secrets"
	"github.com/dspsync/userlist/service"
	"github.com/dspsync/userlist/store"
)

func init() {
	// Register an HTTP function with the Functions Framework
	functions.HTTP("UserlistSyncHttp", userlistSyncHttp)
	functions.CloudEvent("UserlistSyncPubSub", userlistSyncPubSub)
}

const databaseUrlName = "DATABASE_URL"

// SyncCounts reports how many rows each sync action wrote.
type SyncCounts struct {
	Users     int
	Roles     int
	UserRoles int
}

func runUserlistSync(ctx context.Context) (counts *SyncCounts, err error) {
	var databaseUrl = os.Getenv(databaseUrlName)
	if len(databaseUrl) == 0 {
		err = errors.New(fmt.Sprintf("Environment variable \"%s\" is not set", databaseUrlName))
		log.Println(err)
		return
	}

	var provider secrets.Provider = secrets.EnvProvider{}
	if len(os.Getenv("KSM_CONFIG_BASE64")) > 0 {
		if provider, err = secrets.NewKSMProviderFromEnv(); err != nil {
			log.Println(err)
			return
		}
	}
	var resolver = secrets.NewResolver(provider)

	var cfg *secrets.Config
	if cfg, err = resolver.SCIMConfig(ctx); err != nil {
		log.Println(err)
		return
	}

	var st *store.Store
	if st, err = store.Open(ctx, "postgres", databaseUrl); err != nil {
		log.Println(err)
		return
	}
	defer st.Close()
	if err = st.Init(ctx); err != nil {
		log.Println(err)
		return
	}

	var client = scim.NewClient(scim.Endpoint{
		TokenURL:     cfg.TokenURL,
		BaseURL:      cfg.APIBaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	}, nil)
	var syncer = service.NewSyncer(client, st)

	counts = new(SyncCounts)
	if counts.Users, err = syncer.SyncUsers(ctx); err != nil {
		log.Println(err)
		return
	}
	if counts.Roles, err = syncer.SyncRoles(ctx); err != nil {
		log.Println(err)
		return
	}
	if counts.UserRoles, err = syncer.SyncUserRoles(ctx); err != nil {
		log.Println(err)
		return
	}
	return
}

func printCounts(w io.Writer, counts *SyncCounts) {
	if counts != nil {
		_, _ = fmt.Fprintf(w, "Users synced:\t%d\n", counts.Users)
		_, _ = fmt.Fprintf(w, "Roles synced:\t%d\n", counts.Roles)
		_, _ = fmt.Fprintf(w, "UserRoles synced:\t%d\n", counts.UserRoles)
	}
}

// Function userlistSyncHttp is an HTTP handler
func userlistSyncHttp(w http.ResponseWriter, r *http.Request) {
	var counts, err = runUserlistSync(r.Context())
	if err == nil {
		printCounts(w, counts)
	} else {
		http.Error(w, "sync failed", http.StatusInternalServerError)
	}
}

// userlistSyncPubSub consumes a CloudEvent message and runs the same sync.
func userlistSyncPubSub(ctx context.Context, _ event.Event) (err error) {
	_, err = runUserlistSync(ctx)
	return
}
