package config

const (
	StoreKeyring = "keyring"
	StoreRedis   = "redis"
)

type StoreConfig interface {
	GetCredentialStore() string
	GetKeyringService() string
	GetKeyringBackends() []string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
	GetProfileDSN() string
}

type Store struct {
	CredentialStore string   `env:"CREDENTIAL_STORE"  envDefault:"keyring"`
	KeyringService  string   `env:"KEYRING_SERVICE"   envDefault:"authsession"`
	KeyringBackends []string `env:"KEYRING_BACKENDS"  envSeparator:","`
	RedisAddr       string   `env:"REDIS_ADDR"        envDefault:"localhost:6379"`
	RedisPassword   string   `env:"REDIS_PASSWORD"`
	RedisDB         int      `env:"REDIS_DB"          envDefault:"0"`
	RedisKeyPrefix  string   `env:"REDIS_KEY_PREFIX"  envDefault:"authsession:"`
	ProfileDSN      string   `env:"PROFILE_DSN"       envDefault:"./data/profiles.db"`
}

var _ StoreConfig = Store{}

// GetCredentialStore selects the credential store backend, StoreKeyring or StoreRedis.
func (s Store) GetCredentialStore() string {
	return s.CredentialStore
}

func (s Store) GetKeyringService() string {
	return s.KeyringService
}

// GetKeyringBackends restricts the keyring backends tried, e.g. "file" on headless hosts.
func (s Store) GetKeyringBackends() []string {
	return s.KeyringBackends
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisKeyPrefix() string {
	return s.RedisKeyPrefix
}

// GetProfileDSN is the sqlite database caching user profiles.
func (s Store) GetProfileDSN() string {
	return s.ProfileDSN
}
