package oauthstore

import "time"

// ConsumerRegistry manages server-side registrations: the external
// applications allowed to obtain tokens from this installation.
type ConsumerRegistry interface {
	// UpsertConsumer creates or updates a consumer registration and returns
	// its consumer key. Keys and secrets are generated on create and never
	// regenerated on update.
	UpsertConsumer(c *ConsumerUpdate, userID int64, admin bool) (string, error)

	// DeleteConsumer removes a registration and, by cascade, its tokens.
	// Non-admins may only delete their own keys.
	DeleteConsumer(consumerKey string, userID int64, admin bool) error

	// GetConsumer fetches a registration by key. Non-admins are refused
	// access to keys owned by other users unless the key is public.
	GetConsumer(consumerKey string, userID int64, admin bool) (*Consumer, error)

	// StaticConsumer returns the installation-wide public consumer key
	// (prefixed "sc-"), creating it on first call. Its secret is empty.
	StaticConsumer() (string, error)

	// ListConsumers returns the keys owned by the user plus all public keys.
	ListConsumers(userID int64) ([]Consumer, error)

	// ListApplications returns a sanitized page of all registrations for
	// public application directories.
	ListApplications(offset, limit int) ([]Application, error)
}

// ServerRegistry manages consumer-side registrations: the remote OAuth
// providers this installation calls.
type ServerRegistry interface {
	UpsertServer(s *ServerUpdate, userID int64, admin bool) (string, error)
	DeleteServer(consumerKey string, userID int64, admin bool) error

	// GetServer fetches a registration visible to the user (owned or public).
	GetServer(consumerKey string, userID int64) (*Server, error)

	// ServerForURI resolves the most specific registration whose host equals
	// the URI's host and whose stored path is a prefix of the URI's path.
	ServerForURI(uri string, userID int64) (*Server, error)

	// ListServers returns registrations visible to the user, optionally
	// filtered by a substring match on key, URI, host or path.
	ListServers(q string, userID int64) ([]Server, error)
}

// TokenStore manages request and access tokens for both directions:
// tokens this installation issues to consumers, and tokens it obtains
// from remote servers.
type TokenStore interface {
	// AddRequestToken mints an unauthorized request token for a consumer.
	AddRequestToken(consumerKey string, opts RequestTokenOptions) (*MintedToken, error)

	// RequestToken fetches a live request token with its application metadata.
	RequestToken(token string) (*RequestTokenInfo, error)

	// DeleteRequestToken drops a request (or authorized request) token.
	DeleteRequestToken(token string) error

	// AuthorizeRequestToken upgrades an unauthorized request token, binding
	// it to the approving user, and returns the 1.0a verifier.
	AuthorizeRequestToken(token string, userID int64, referrerHost string) (string, error)

	// ExchangeRequestToken atomically swaps an authorized request token for
	// a brand-new access token. Exactly one of several concurrent exchange
	// attempts for the same token succeeds.
	ExchangeRequestToken(token string, opts ExchangeOptions) (*MintedToken, error)

	AccessToken(token string, userID int64) (*AccessTokenInfo, error)
	DeleteAccessToken(token string, userID int64, admin bool) error

	// SetAccessTokenTTL reacts to a peer's xoauth_token_ttl signal. A TTL of
	// zero or less deletes the token immediately.
	SetAccessTokenTTL(token string, ttl time.Duration) error

	CountAccessTokens(consumerKey string) (int, error)
	ListIssuedTokens(userID int64) ([]IssuedToken, error)

	// AddServerToken stores a token obtained from a remote server, replacing
	// any previous token of the same type and name for that registration
	// and user.
	AddServerToken(consumerKey string, tokenType TokenType, token, secret string, userID int64, opts ServerTokenOptions) error

	ServerToken(consumerKey, token string, userID int64) (*ServerTokenInfo, error)
	ServerTokenSecrets(consumerKey, token string, tokenType TokenType, userID int64, name string) (*ServerTokenInfo, error)
	ListServerTokens(userID int64) ([]ServerTokenInfo, error)
	CountServerTokens(consumerKey string) (int, error)
	DeleteServerToken(consumerKey, token string, userID int64, admin bool) error
	SetServerTokenTTL(consumerKey, token string, ttl time.Duration) error
}

// SignatureStore is the restricted read path needed to sign an outgoing
// request. The two-legged variant implements only this.
type SignatureStore interface {
	SecretsForSignature(uri string, userID int64, name string) (*SignatureCredentials, error)
}

// CredentialResolver is the read-path facade used by the protocol engine.
type CredentialResolver interface {
	SignatureStore

	// SecretsForVerify fetches the secrets for verifying an inbound signed
	// request. TokenTypeNone verifies only the consumer signature.
	SecretsForVerify(consumerKey, token string, tokenType TokenType) (*VerifyCredentials, error)
}

// NonceLedger enforces the timestamp/nonce replay rules.
type NonceLedger interface {
	// CheckNonce records a (consumer key, token, timestamp, nonce) tuple,
	// rejecting stale timestamps and exact replays, and purges records
	// older than the skew window.
	CheckNonce(consumerKey, token string, timestamp int64, nonce string) error
}

// AuditLog is the append-only exchange log.
type AuditLog interface {
	// AddLog appends one exchange. The userID may be nil for system-wide
	// entries; an empty remoteIP is recorded as unknown.
	AddLog(keys LogKeys, received, sent, baseString, notes string, userID *int64, remoteIP string) error

	// ListLog returns up to 100 most recent entries matching the filter,
	// restricted to system-wide entries and the caller's own.
	ListLog(filter LogFilter, userID int64) ([]LogEntry, error)
}

// Store is the full capability set of a backing store.
type Store interface {
	ConsumerRegistry
	ServerRegistry
	TokenStore
	CredentialResolver
	NonceLedger
	AuditLog

	Close() error
}
