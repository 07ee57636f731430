package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	JWTTTL        time.Duration
	AdminUsername string
	AdminPassword string
	SeedDemo      bool
	CORSOrigins   []string
	SchoolName    string
	Debug         bool
}

func defaults(v *viper.Viper) {
	v.SetTypeByDefaultValue(true)
	v.SetDefault("PORT", "8080")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_SECRET", "change-this-to-a-random-secret-in-production")
	v.SetDefault("JWT_TTL", 24*time.Hour)
	v.SetDefault("ADMIN_USERNAME", "admin")
	v.SetDefault("ADMIN_PASSWORD", "admin123")
	v.SetDefault("SEED_DEMO", true)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("SCHOOL_NAME", "SchoolHub Learning Center")
	v.SetDefault("DEBUG", false)
}

// Load reads the configuration from the environment, after loading envFile
// (".env" when empty) if it exists
func Load(envFile string) *Config {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			log.Printf("Warning: could not load %s: %v", envFile, err)
		}
	} else if !os.IsNotExist(err) {
		log.Printf("Warning: could not stat %s: %v", envFile, err)
	}

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	return &Config{
		Port:          v.GetString("PORT"),
		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),
		JWTSecret:     v.GetString("JWT_SECRET"),
		JWTTTL:        v.GetDuration("JWT_TTL"),
		AdminUsername: v.GetString("ADMIN_USERNAME"),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		SeedDemo:      v.GetBool("SEED_DEMO"),
		CORSOrigins:   splitList(v.GetString("CORS_ORIGINS")),
		SchoolName:    v.GetString("SCHOOL_NAME"),
		Debug:         v.GetBool("DEBUG"),
	}
}

// Debugf logs a formatted message only when DEBUG is enabled
func (c *Config) Debugf(format string, v ...interface{}) {
	if c.Debug {
		log.Printf("[DEBUG] "+format, v...)
	}
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// AllowAllOrigins reports whether CORS_ORIGINS is the wildcard
func (c *Config) AllowAllOrigins() bool {
	return len(c.CORSOrigins) == 0 || (len(c.CORSOrigins) == 1 && c.CORSOrigins[0] == "*")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
