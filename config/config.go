package config

import (
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

type Config struct {
	App      App           `yaml:"app"`
	Server   Server        `yaml:"server"`
	DB       DB            `yaml:"db"`
	Storage  Storage       `yaml:"storage"`
	Queue    *RabbitMQ     `yaml:"rabbitmq"`
	ASR      ASR           `yaml:"asr"`
	LLM      LLM           `yaml:"llm"`
	Device   Device        `yaml:"device"`
	MinIO    *minio.Client `yaml:"-"`
	MinIOBkt string        `yaml:"minio_bucket"`
}

type App struct {
	Environment string `yaml:"environment"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	// Workers bounds concurrent pipeline jobs; each one drives a heavy
	// ASR inference, so the host default is never inherited.
	Workers int `yaml:"workers"`
	// QueueCapacity bounds submissions waiting for a worker. Past it the
	// upload endpoint sheds load instead of piling up inference calls.
	QueueCapacity     int `yaml:"queue_capacity"`
	JobTimeoutSeconds int `yaml:"job_timeout_seconds"`
}

type DB struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

type Storage struct {
	Driver string `yaml:"driver"` // local or minio
	Dir    string `yaml:"dir"`
}

type RabbitMQ struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	User string `json:"user"`
	Pass string `json:"pass"`
	Kind string `json:"kind"`
}

type ASR struct {
	Endpoint       string `yaml:"endpoint"`
	Language       string `yaml:"language"`
	BeamSize       int    `yaml:"beam_size"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type LLM struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type Device struct {
	DBPath string `yaml:"db_path"`
}

func Load(path string) (*Config, error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("app.environment", "develop")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 2)
	viper.SetDefault("server.queue_capacity", 64)
	viper.SetDefault("server.job_timeout_seconds", 600)
	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.dsn", "db.sqlite")
	viper.SetDefault("storage.driver", "local")
	viper.SetDefault("storage.dir", "uploads")
	viper.SetDefault("rabbitmq.kind", "direct")
	viper.SetDefault("asr.language", "en")
	viper.SetDefault("asr.beam_size", 5)
	viper.SetDefault("asr.timeout_seconds", 600)
	viper.SetDefault("llm.endpoint", "http://localhost:11434")
	viper.SetDefault("llm.model", "qwen2.5:14b")
	viper.SetDefault("llm.timeout_seconds", 120)
	viper.SetDefault("device.db_path", "device.sqlite")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := &Config{
		App: App{
			Environment: viper.GetString("app.environment"),
		},
		Server: Server{
			HttpPort:          viper.GetString("server.port"),
			Workers:           viper.GetInt("server.workers"),
			QueueCapacity:     viper.GetInt("server.queue_capacity"),
			JobTimeoutSeconds: viper.GetInt("server.job_timeout_seconds"),
		},
		DB: DB{
			Driver: viper.GetString("db.driver"),
			DSN:    viper.GetString("db.dsn"),
		},
		Storage: Storage{
			Driver: viper.GetString("storage.driver"),
			Dir:    viper.GetString("storage.dir"),
		},
		ASR: ASR{
			Endpoint:       viper.GetString("asr.endpoint"),
			Language:       viper.GetString("asr.language"),
			BeamSize:       viper.GetInt("asr.beam_size"),
			TimeoutSeconds: viper.GetInt("asr.timeout_seconds"),
		},
		LLM: LLM{
			Endpoint:       viper.GetString("llm.endpoint"),
			Model:          viper.GetString("llm.model"),
			TimeoutSeconds: viper.GetInt("llm.timeout_seconds"),
		},
		Device: Device{
			DBPath: viper.GetString("device.db_path"),
		},
	}

	if viper.IsSet("rabbitmq.host") {
		cfg.Queue = &RabbitMQ{
			Host: viper.GetString("rabbitmq.host"),
			Port: viper.GetInt("rabbitmq.port"),
			User: viper.GetString("rabbitmq.user"),
			Pass: viper.GetString("rabbitmq.pass"),
			Kind: viper.GetString("rabbitmq.kind"),
		}
	}

	if cfg.Storage.Driver == "minio" {
		minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
			Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: false,
		})
		if err != nil {
			return nil, err
		}
		cfg.MinIO = minioClient
		cfg.MinIOBkt = viper.GetString("minio.bucket")
	}

	return cfg, nil
}
