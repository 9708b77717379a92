package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/tatianab/neon-trials/internal/models"
	"go.uber.org/zap"
)

// ErrNoAccount means the user has no external identity yet and must
// register with the provider before linking.
var ErrNoAccount = errors.New("no game identity account yet: register on the identity site, then link again")

var alreadyLoggedInRe = regexp.MustCompile(`(?i)already logged in`)

const noAccountMarker = "does not already have an account"

// Result is a successful link.
type Result struct {
	Identity models.LinkedIdentity
	// AlreadyAuthenticated is set when the provider reported an existing
	// session and the link was only re-read.
	AlreadyAuthenticated bool
}

// Linker runs the two-step login and reads the external address.
type Linker struct {
	provider   Provider
	crossAppID string
	directory  *Directory
	log        *zap.Logger
}

// NewLinker returns a linker for the cross-provider app crossAppID.
// directory may be nil, in which case usernames are not looked up.
func NewLinker(p Provider, crossAppID string, directory *Directory, log *zap.Logger) *Linker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Linker{provider: p, crossAppID: crossAppID, directory: directory, log: log.Named("identity")}
}

// Link logs in with the provider if needed, then performs the cross-provider
// login and re-reads the linked address.
func (l *Linker) Link(ctx context.Context) (Result, error) {
	_, err := l.provider.LinkedAccounts(ctx)
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		if err := l.provider.Login(ctx); err != nil {
			return l.classify(ctx, err)
		}
	case err != nil:
		return Result{}, err
	}

	if err := l.provider.LoginCrossApp(ctx, l.crossAppID); err != nil {
		return l.classify(ctx, err)
	}
	id, err := l.Current(ctx)
	if err != nil {
		return Result{}, err
	}
	l.log.Info("identity linked", zap.Stringer("external", id.Address))
	return Result{Identity: id}, nil
}

func (l *Linker) classify(ctx context.Context, err error) (Result, error) {
	msg := err.Error()
	switch {
	case alreadyLoggedInRe.MatchString(msg):
		l.log.Info("provider session already active, refreshing link")
		id, rerr := l.Current(ctx)
		return Result{Identity: id, AlreadyAuthenticated: true}, rerr
	case strings.Contains(msg, noAccountMarker):
		l.log.Info("no external account registered")
		return Result{}, ErrNoAccount
	default:
		l.log.Warn("identity linking failed", zap.Error(err))
		return Result{}, err
	}
}

// Current reads the linked external address without logging in. Without a
// provider session the identity is empty. Username lookup failures are
// ignored.
func (l *Linker) Current(ctx context.Context) (models.LinkedIdentity, error) {
	accounts, err := l.provider.LinkedAccounts(ctx)
	if errors.Is(err, ErrNotAuthenticated) {
		return models.LinkedIdentity{}, nil
	}
	if err != nil {
		return models.LinkedIdentity{}, err
	}

	raw := PickAddress(accounts, l.crossAppID)
	if !common.IsHexAddress(raw) {
		return models.LinkedIdentity{}, nil
	}
	id := models.LinkedIdentity{Address: common.HexToAddress(raw)}
	if l.directory != nil {
		name, err := l.directory.Username(ctx, id.Address)
		if err != nil {
			l.log.Debug("username lookup failed", zap.Error(err))
		}
		id.Username = name
	}
	return id, nil
}

// Directory looks up display names for external identities.
type Directory struct {
	baseURL string
	client  *http.Client
}

// NewDirectory returns a lookup client for baseURL.
func NewDirectory(baseURL string, client *http.Client) *Directory {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Directory{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type checkWalletResponse struct {
	HasUsername bool `json:"hasUsername"`
	User        struct {
		Username string `json:"username"`
	} `json:"user"`
}

// Username returns the display name registered for addr, or "" when there
// is none.
func (d *Directory) Username(ctx context.Context, addr common.Address) (string, error) {
	u := d.baseURL + "/api/check-wallet?wallet=" + url.QueryEscape(addr.Hex())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("identity lookup error %d", resp.StatusCode)
	}

	var out checkWalletResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if !out.HasUsername {
		return "", nil
	}
	return out.User.Username, nil
}
