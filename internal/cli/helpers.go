package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/imkarma/flowctl/internal/apflow"
	"github.com/imkarma/flowctl/internal/config"
	"github.com/imkarma/flowctl/internal/rpc"
	"github.com/imkarma/flowctl/internal/store"
	"github.com/rs/zerolog/log"
)

const flowDirName = ".flowctl"

// flowPath returns the path to a file inside .flowctl/.
func flowPath(parts ...string) string {
	elems := append([]string{flowDirName}, parts...)
	return filepath.Join(elems...)
}

// mustStore opens the store, returning an error if flowctl is not initialized.
func mustStore() (*store.Store, error) {
	dbPath := flowPath("settings.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("flowctl not initialized. Run: flowctl init")
	}
	return openStore(dbPath)
}

// openStore opens or creates the SQLite store at the given path.
func openStore(dbPath string) (*store.Store, error) {
	return store.New(dbPath)
}

// session bundles everything a command needs to talk to the server.
type session struct {
	cfg     *config.Config
	store   *store.Store // nil when .flowctl/ does not exist
	baseURL string
	client  *apflow.Client
}

// openSession resolves config, settings and credentials and builds a client.
func openSession() (*session, error) {
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}

	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = flowPath("config.yaml")
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	var st *store.Store
	if s, err := mustStore(); err == nil {
		st = s
	} else {
		log.Debug().Err(err).Msg("settings store unavailable")
	}

	stored := ""
	if st != nil {
		if stored, err = st.BaseURL(); err != nil {
			st.Close()
			return nil, err
		}
	}
	baseURL := config.ResolveBaseURL(flagAPIURL, env.APIURL, stored, cfg.BaseURL)

	var storedTokens rpc.TokenSource
	if st != nil {
		storedTokens = st
	}

	rc := rpc.New(baseURL,
		rpc.WithHTTPClient(&http.Client{Timeout: cfg.Timeout()}),
		rpc.WithTokenSource(resolveTokens(flagToken, env.AuthToken, storedTokens)),
		rpc.WithHeaders(cfg.ExtraHeaders(os.LookupEnv)),
		rpc.WithLogger(log.Logger),
	)
	log.Debug().Str("base_url", baseURL).Msg("session ready")

	return &session{cfg: cfg, store: st, baseURL: baseURL, client: apflow.New(rc)}, nil
}

// Close releases the settings store.
func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

// record appends to the local history. Failures are logged, not returned:
// the server-side operation already happened.
func (s *session) record(taskID, name string, action store.Action) {
	if s.store == nil {
		return
	}
	if _, err := s.store.Record(taskID, name, action, s.baseURL); err != nil {
		log.Warn().Err(err).Str("task_id", taskID).Msg("record history")
	}
}

// tokenChain picks the bearer token: a fixed token from a flag or the
// environment wins, otherwise the settings store is read on every request.
type tokenChain struct {
	fixed  string
	stored rpc.TokenSource
}

func (t tokenChain) Token(ctx context.Context) (string, error) {
	if t.fixed != "" {
		return t.fixed, nil
	}
	if t.stored == nil {
		return "", nil
	}
	return t.stored.Token(ctx)
}

func resolveTokens(flag, env string, stored rpc.TokenSource) rpc.TokenSource {
	fixed := strings.TrimSpace(flag)
	if fixed == "" {
		fixed = strings.TrimSpace(env)
	}
	return tokenChain{fixed: fixed, stored: stored}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
