package doi

import (
	"context"
	"net/url"
	"strings"

	"github.com/lehigh-university-libraries/doiregistry/activity"
	"github.com/lehigh-university-libraries/doiregistry/lifecycle"
	"github.com/lehigh-university-libraries/doiregistry/revision"
)

// Commit is one atomic write: the record, plus the snapshot and activity
// that go with it. Store implementations apply all of it or none of it.
type Commit struct {
	Record *Record

	// Create inserts a new record and fails with ErrConflict when the DOI
	// exists. Otherwise the write succeeds only if the stored record still
	// has ExpectedState and ExpectedLock.
	Create        bool
	ExpectedState lifecycle.State
	ExpectedLock  int

	Snapshot *revision.Snapshot
	Activity *activity.Activity
}

// Store persists records with their revision and activity logs.
type Store interface {
	Get(ctx context.Context, doi string) (*Record, error)
	Exists(ctx context.Context, doi string) (bool, error)
	// Commit applies c. The stored lock version becomes
	// c.ExpectedLock+1 on update and 0 on create.
	Commit(ctx context.Context, c Commit) error
	// Delete removes a record in expectedState. Its snapshots go with it;
	// activities are kept.
	Delete(ctx context.Context, doi string, expectedState lifecycle.State, a *activity.Activity) error
	Snapshots(ctx context.Context, doi string) ([]revision.Snapshot, error)
	Activities(ctx context.Context, doi string) ([]activity.Activity, error)
	// Walk returns up to limit records ordered by DOI key, starting after
	// the given key.
	Walk(ctx context.Context, after string, limit int) ([]*Record, error)
}

// Client is a repository account able to own DOIs.
type Client struct {
	ID       string   `json:"id"`
	Name     string   `json:"name,omitempty"`
	Prefixes []string `json:"prefixes,omitempty"`
	// Domains limits the landing page hosts of the client's DOIs. "*"
	// allows any host.
	Domains []string `json:"domains,omitempty"`
}

// ClientDirectory resolves repository accounts.
type ClientDirectory interface {
	Client(ctx context.Context, id string) (*Client, error)
}

// Authorizer decides whether the caller may perform a capability.
type Authorizer interface {
	Can(ctx context.Context, capability string, rec *Record) bool
}

// Capabilities checked through the Authorizer.
const (
	CapabilityTransfer = "transfer"
)

// Registrar forwards URL changes of registered DOIs to the handle system.
type Registrar interface {
	Register(ctx context.Context, doi, url string) error
}

// AllowAll is an Authorizer granting every capability.
type AllowAll struct{}

func (AllowAll) Can(context.Context, string, *Record) bool { return true }

// MatchDomain reports whether the host of rawURL is allowed by domains.
// Entries are "*", an exact host or a "*.example.org" wildcard.
func MatchDomain(domains []string, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		switch {
		case d == "":
		case d == "*":
			return true
		case strings.HasPrefix(d, "*."):
			if strings.HasSuffix(host, d[1:]) {
				return true
			}
		case d == host:
			return true
		}
	}
	return false
}

type ctxKey int

const (
	actorKey ctxKey = iota
	requestIDKey
)

// WithActor returns a context naming the principal that acts.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFrom returns the principal set by WithActor.
func ActorFrom(ctx context.Context) string {
	s, _ := ctx.Value(actorKey).(string)
	return s
}

// WithRequestID returns a context carrying the request id recorded on
// activities.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the request id set by WithRequestID.
func RequestIDFrom(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}
