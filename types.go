// Package oauthstore defines the storage contract for an OAuth 1.0/1.0a
// credential store: consumer and server registries, request/access token
// lifecycles, nonce replay protection and an audit log. Implementations
// live in subpackages (sqlstore for SQL backends, twolegged for the
// static signature-only variant).
package oauthstore

import "time"

// TokenType distinguishes pre-authorization request tokens from access tokens.
type TokenType string

const (
	TokenTypeRequest TokenType = "request"
	TokenTypeAccess  TokenType = "access"

	// TokenTypeNone is only valid for SecretsForVerify and means "verify the
	// consumer signature without a token" (the request-token step itself).
	TokenTypeNone TokenType = ""
)

// ParseTokenType validates a wire-level token type string.
func ParseTokenType(s string) (TokenType, error) {
	switch TokenType(s) {
	case TokenTypeRequest:
		return TokenTypeRequest, nil
	case TokenTypeAccess:
		return TokenTypeAccess, nil
	}
	return "", Errorf(ErrInvalidArgument, "unknown token type %q, must be either \"request\" or \"access\"", s)
}

// TTLInfinite is the expiry placed on tokens that never expire. Using a
// far-future instant instead of NULL keeps every read down to a single
// "ttl >= now" comparison.
var TTLInfinite = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Consumer is a server-side registration: an external application allowed
// to obtain tokens from this installation. A nil UserID marks a public
// (shared) key visible to every user.
type Consumer struct {
	ID                    int64     `json:"id"`
	UserID                *int64    `json:"user_id"`
	ConsumerKey           string    `json:"consumer_key"`
	ConsumerSecret        string    `json:"consumer_secret,omitempty"`
	Enabled               bool      `json:"enabled"`
	Status                string    `json:"status"`
	RequesterName         string    `json:"requester_name"`
	RequesterEmail        string    `json:"requester_email"`
	CallbackURI           string    `json:"callback_uri"`
	ApplicationURI        string    `json:"application_uri"`
	ApplicationTitle      string    `json:"application_title"`
	ApplicationDescr      string    `json:"application_descr"`
	ApplicationNotes      string    `json:"application_notes"`
	ApplicationType       string    `json:"application_type"`
	ApplicationCommercial bool      `json:"application_commercial"`
	IssueDate             time.Time `json:"issue_date"`
	Timestamp             time.Time `json:"timestamp"`
}

// ConsumerUpdate is the input for UpsertConsumer. ID zero means create; on
// create the key and secret are generated server-side and never taken from
// the caller. SetOwner distinguishes "owner not provided" from "owner
// explicitly set to this value (possibly nil)"; only admins may set it.
type ConsumerUpdate struct {
	ID                    int64
	ConsumerKey           string // required on update, ignored on create
	ConsumerSecret        string // required on update for non-admins
	RequesterName         string
	RequesterEmail        string
	CallbackURI           string
	ApplicationURI        string
	ApplicationTitle      string
	ApplicationDescr      string
	ApplicationNotes      string
	ApplicationType       string
	ApplicationCommercial bool
	SetOwner              bool
	Owner                 *int64
}

// Application is the sanitized public view of a consumer registration,
// suitable for an application directory. No secrets, no requester data.
type Application struct {
	ID               int64     `json:"id"`
	Enabled          bool      `json:"enabled"`
	Status           string    `json:"status"`
	IssueDate        time.Time `json:"issue_date"`
	ApplicationURI   string    `json:"application_uri"`
	ApplicationTitle string    `json:"application_title"`
	ApplicationDescr string    `json:"application_descr"`
}

// Server is a consumer-side registration: a remote OAuth provider this
// installation calls as a client. Host and path are split out of ServerURI
// for prefix matching; the stored path always ends with a slash.
type Server struct {
	ID               int64     `json:"id"`
	UserID           *int64    `json:"user_id"`
	ConsumerKey      string    `json:"consumer_key"`
	ConsumerSecret   string    `json:"consumer_secret,omitempty"`
	SignatureMethods []string  `json:"signature_methods"`
	ServerURI        string    `json:"server_uri"`
	ServerURIHost    string    `json:"server_uri_host"`
	ServerURIPath    string    `json:"server_uri_path"`
	RequestTokenURI  string    `json:"request_token_uri"`
	AuthorizeURI     string    `json:"authorize_uri"`
	AccessTokenURI   string    `json:"access_token_uri"`
	Timestamp        time.Time `json:"timestamp"`
}

// ServerUpdate is the input for UpsertServer. Unlike consumers, the key and
// secret come from the remote provider and are stored as supplied.
type ServerUpdate struct {
	ID               int64
	ConsumerKey      string // required
	ConsumerSecret   string
	ServerURI        string // required
	RequestTokenURI  string
	AuthorizeURI     string
	AccessTokenURI   string
	SignatureMethods []string
	SetOwner         bool
	Owner            *int64
}

// MintedToken is a freshly generated token/secret pair. A zero TTL means
// the token never expires.
type MintedToken struct {
	Token  string        `json:"token"`
	Secret string        `json:"token_secret"`
	TTL    time.Duration `json:"token_ttl"`
}

// RequestTokenOptions tunes AddRequestToken. Zero values take the
// installation defaults: the configured request-token TTL and the 1.0a
// "oob" callback sentinel.
type RequestTokenOptions struct {
	TTL      time.Duration
	Callback string
}

// ExchangeOptions tunes ExchangeRequestToken. Verifier must match the one
// assigned at authorization when 1.0a is in play; a zero TTL produces a
// token that never expires.
type ExchangeOptions struct {
	Verifier string
	TTL      time.Duration
}

// ServerTokenOptions tunes AddServerToken. ServerURI disambiguates between
// several registrations of the same consumer key by one user. A zero TTL
// means the type default: the request-token TTL for request tokens, never
// expiring for access tokens.
type ServerTokenOptions struct {
	Name      string
	TTL       time.Duration
	ServerURI string
}

// RequestTokenInfo is a pending request token joined with the application
// metadata of its consumer, as shown on the authorize page.
type RequestTokenInfo struct {
	Token            string    `json:"token"`
	TokenSecret      string    `json:"token_secret"`
	ConsumerKey      string    `json:"consumer_key"`
	ConsumerSecret   string    `json:"consumer_secret"`
	TokenType        TokenType `json:"token_type"`
	CallbackURL      string    `json:"callback_url"`
	ApplicationTitle string    `json:"application_title"`
	ApplicationDescr string    `json:"application_descr"`
	ApplicationURI   string    `json:"application_uri"`
}

// AccessTokenInfo is an issued access token joined with its consumer.
type AccessTokenInfo struct {
	Token            string `json:"token"`
	TokenSecret      string `json:"token_secret"`
	ReferrerHost     string `json:"token_referrer_host"`
	ConsumerKey      string `json:"consumer_key"`
	ConsumerSecret   string `json:"consumer_secret"`
	ApplicationURI   string `json:"application_uri"`
	ApplicationTitle string `json:"application_title"`
	ApplicationDescr string `json:"application_descr"`
	CallbackURI      string `json:"callback_uri"`
}

// IssuedToken is one row of the "which applications can access my account"
// listing: a live access token with its consumer registration.
type IssuedToken struct {
	ConsumerKey      string    `json:"consumer_key"`
	ConsumerSecret   string    `json:"consumer_secret"`
	Enabled          bool      `json:"enabled"`
	Status           string    `json:"status"`
	ApplicationURI   string    `json:"application_uri"`
	ApplicationTitle string    `json:"application_title"`
	ApplicationDescr string    `json:"application_descr"`
	CallbackURI      string    `json:"callback_uri"`
	Timestamp        time.Time `json:"timestamp"`
	Token            string    `json:"token"`
	TokenSecret      string    `json:"token_secret"`
	ReferrerHost     string    `json:"token_referrer_host"`
}

// ServerTokenInfo is a token obtained from a remote server joined with its
// registration. ExpiresAt is TTLInfinite for tokens that never expire.
type ServerTokenInfo struct {
	ConsumerKey      string    `json:"consumer_key"`
	ConsumerSecret   string    `json:"consumer_secret"`
	Token            string    `json:"token"`
	TokenSecret      string    `json:"token_secret"`
	TokenName        string    `json:"token_name"`
	UserID           int64     `json:"user_id"`
	SignatureMethods []string  `json:"signature_methods"`
	ServerURI        string    `json:"server_uri"`
	ServerURIHost    string    `json:"server_uri_host"`
	ServerURIPath    string    `json:"server_uri_path"`
	RequestTokenURI  string    `json:"request_token_uri"`
	AuthorizeURI     string    `json:"authorize_uri"`
	AccessTokenURI   string    `json:"access_token_uri"`
	Timestamp        time.Time `json:"timestamp"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// VerifyCredentials is the signing material for verifying an inbound
// request. Token fields are empty and UserID nil in consumer-only mode
// (TokenTypeNone).
type VerifyCredentials struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
	Token          string `json:"token"`
	TokenSecret    string `json:"token_secret"`
	UserID         *int64 `json:"user_id"`
}

// SignatureCredentials is the signing material for an outgoing request to a
// registered server.
type SignatureCredentials struct {
	ConsumerKey      string   `json:"consumer_key"`
	ConsumerSecret   string   `json:"consumer_secret"`
	Token            string   `json:"token"`
	TokenSecret      string   `json:"token_secret"`
	SignatureMethods []string `json:"signature_methods"`
}

// LogKeys carries the correlation keys of one logged OAuth exchange.
// Server* identifies the inbound direction (this site acting as server),
// Client* the outbound one. Empty fields are stored as NULL.
type LogKeys struct {
	ServerConsumerKey string
	ServerToken       string
	ClientConsumerKey string
	ClientToken       string
}

// LogFilter selects audit log entries; empty fields match anything.
type LogFilter = LogKeys

// LogEntry is one audit log record.
type LogEntry struct {
	ID                int64     `json:"id"`
	ServerConsumerKey string    `json:"server_consumer_key"`
	ServerToken       string    `json:"server_token"`
	ClientConsumerKey string    `json:"client_consumer_key"`
	ClientToken       string    `json:"client_token"`
	UserID            *int64    `json:"user_id"`
	Received          string    `json:"received"`
	Sent              string    `json:"sent"`
	BaseString        string    `json:"base_string"`
	Notes             string    `json:"notes"`
	Timestamp         time.Time `json:"timestamp"`
	RemoteIP          string    `json:"remote_ip"`
}
