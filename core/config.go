package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// Conf is the application configuration loaded from the environment.
	Conf     *Config
	confOnce sync.Once
)

func init() {
	Conf = NewConfig()
}

type Config struct {
	Debug            bool
	TestMode         bool
	AppName          string
	Env              string // DEV (local; default), TEST, QA, PROD
	Build            string
	SecretKey        string
	FrontendBaseURL  string
	WorkDir          string
	RollbarToken     string
	DefaultFromEmail mail.Address

	PasswordResetTimeoutDelta time.Duration

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Email    EmailConfig
	SMS      SMSConfig
	Grading  GradingConfig
}

type ServerConfig struct {
	Host                      string
	DebugHost                 string
	AllowOrigins              []string
	ShutdownTimeout           time.Duration
	JWTExpirationDelta        time.Duration
	JWTRefreshExpirationDelta time.Duration
}

type DatabaseConfig struct {
	Engine        string
	Host          string
	Port          int
	Name          string
	User          string
	Password      string
	AdminUser     string
	AdminPassword string
	DisableTLS    bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type StorageConfig struct {
	Backend       string // local, s3, b2
	LocalDir      string
	MaxUploadSize int64
	S3Region      string
	S3Bucket      string
	S3AccessKey   string
	S3SecretKey   string
	B2AccountID   string
	B2AppKey      string
	B2Bucket      string
}

type EmailConfig struct {
	Backend        string // console, sendgrid, smtp
	SendgridApiKey string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
}

type SMSConfig struct {
	Backend          string // console, twilio
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string
}

type GradingConfig struct {
	CourseGradeFormula string
	PassingGrade       float64
	TimeLimitGrace     time.Duration
}

// Address returns the "host:port" of the database server.
func (db DatabaseConfig) Address() string {
	return net.JoinHostPort(db.Host, strconv.Itoa(db.Port))
}

// NewConfig loads the configuration once and returns it.
func NewConfig() *Config {
	confOnce.Do(func() {
		Conf = loadConfig()
	})
	return Conf
}

func loadConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "SPIST Campus")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "k2w#vq8^zb7!t0e+u-3x(p4rf_l9m&ns1c@dy6hj=oa5gi*b)")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "SPIST Campus <noreply@localhost>")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.allowOrigins", "*")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "spist")
	v.SetDefault("database.user", "spist")
	v.SetDefault("database.password", "spist")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 10*time.Minute)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.localDir", "media")
	v.SetDefault("storage.maxUploadSize", 10<<20)
	v.SetDefault("storage.s3Region", "")
	v.SetDefault("storage.s3Bucket", "")
	v.SetDefault("storage.s3AccessKey", "")
	v.SetDefault("storage.s3SecretKey", "")
	v.SetDefault("storage.b2AccountID", "")
	v.SetDefault("storage.b2AppKey", "")
	v.SetDefault("storage.b2Bucket", "")

	v.SetDefault("email.backend", "console")
	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.smtpHost", "localhost")
	v.SetDefault("email.smtpPort", 1025)
	v.SetDefault("email.smtpUser", "")
	v.SetDefault("email.smtpPassword", "")

	v.SetDefault("sms.backend", "console")
	v.SetDefault("sms.twilioAccountSID", "")
	v.SetDefault("sms.twilioAuthToken", "")
	v.SetDefault("sms.twilioFrom", "")

	v.SetDefault("grading.courseGradeFormula", "(midterm + final) / 2")
	v.SetDefault("grading.passingGrade", 75.0)
	v.SetDefault("grading.timeLimitGrace", 30*time.Second)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	workDir := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:                     v.GetBool("debug"),
		TestMode:                  v.GetBool("testMode"),
		AppName:                   v.GetString("appName"),
		Env:                       env,
		Build:                     v.GetString("build"),
		SecretKey:                 v.GetString("secretKey"),
		FrontendBaseURL:           strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		WorkDir:                   workDir,
		RollbarToken:              v.GetString("rollbarToken"),
		PasswordResetTimeoutDelta: v.GetDuration("passwordResetTimeoutDelta"),
	}

	from, err := mail.ParseAddress(v.GetString("defaultFromEmail"))
	if err != nil {
		log.Fatalf("config.defaultFromEmail: %v", err)
	}
	conf.DefaultFromEmail = *from

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.AllowOrigins = SplitCSV(v.GetString("server.allowOrigins"))
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")
	conf.Server.JWTExpirationDelta = v.GetDuration("server.jwtExpirationDelta")
	conf.Server.JWTRefreshExpirationDelta = v.GetDuration("server.jwtRefreshExpirationDelta")

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetInt("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Redis.Addr = v.GetString("redis.addr")
	conf.Redis.Password = v.GetString("redis.password")
	conf.Redis.DB = v.GetInt("redis.db")
	conf.Redis.TTL = v.GetDuration("redis.ttl")

	conf.Storage.Backend = v.GetString("storage.backend")
	conf.Storage.LocalDir = v.GetString("storage.localDir")
	if !filepath.IsAbs(conf.Storage.LocalDir) {
		conf.Storage.LocalDir = filepath.Join(workDir, conf.Storage.LocalDir)
	}
	conf.Storage.MaxUploadSize = v.GetInt64("storage.maxUploadSize")
	conf.Storage.S3Region = v.GetString("storage.s3Region")
	conf.Storage.S3Bucket = v.GetString("storage.s3Bucket")
	conf.Storage.S3AccessKey = v.GetString("storage.s3AccessKey")
	conf.Storage.S3SecretKey = v.GetString("storage.s3SecretKey")
	conf.Storage.B2AccountID = v.GetString("storage.b2AccountID")
	conf.Storage.B2AppKey = v.GetString("storage.b2AppKey")
	conf.Storage.B2Bucket = v.GetString("storage.b2Bucket")

	conf.Email.Backend = v.GetString("email.backend")
	conf.Email.SendgridApiKey = v.GetString("email.sendgridApiKey")
	conf.Email.SMTPHost = v.GetString("email.smtpHost")
	conf.Email.SMTPPort = v.GetInt("email.smtpPort")
	conf.Email.SMTPUser = v.GetString("email.smtpUser")
	conf.Email.SMTPPassword = v.GetString("email.smtpPassword")

	conf.SMS.Backend = v.GetString("sms.backend")
	conf.SMS.TwilioAccountSID = v.GetString("sms.twilioAccountSID")
	conf.SMS.TwilioAuthToken = v.GetString("sms.twilioAuthToken")
	conf.SMS.TwilioFrom = v.GetString("sms.twilioFrom")

	conf.Grading.CourseGradeFormula = v.GetString("grading.courseGradeFormula")
	conf.Grading.PassingGrade = v.GetFloat64("grading.passingGrade")
	conf.Grading.TimeLimitGrace = v.GetDuration("grading.timeLimitGrace")

	return conf
}
