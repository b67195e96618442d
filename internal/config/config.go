package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	AppEnv   string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// hosted identity / storage
	IdentityURL        string
	IdentityServiceKey string

	// AI providers
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	OpenAIEmbedModel    string
	HuggingFaceAPIKey   string
	HuggingFaceBaseURL  string
	HuggingFaceModel    string
	PerplexityAPIKey    string
	PerplexityBaseURL   string
	PerplexityChatModel string
	PerplexityRAGModel  string

	// ingestion admin credential
	AdminToken     string
	AdminTokenHash string

	AllowedOrigins []string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int
}

// Load reads the process environment, after merging an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		} else {
			addr = ":5001"
		}
	}

	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	// DSN demo:
	// host=127.0.0.1 user=app password=apppass dbname=school port=5432 sslmode=disable
	driver := strings.ToLower(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "postgres"
	}
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		switch driver {
		case "sqlite":
			dsn = "file:school.db?cache=shared"
		case "mysql":
			dsn = "app:apppass@tcp(127.0.0.1:3306)/school?charset=utf8mb4&parseTime=true&loc=Local"
		default:
			dsn = "host=127.0.0.1 user=app password=apppass dbname=school port=5432 sslmode=disable"
		}
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	identityURL := firstNonEmpty(os.Getenv("IDENTITY_URL"), os.Getenv("SUPABASE_URL"))
	serviceKey := firstNonEmpty(os.Getenv("IDENTITY_SERVICE_KEY"), os.Getenv("SUPABASE_SERVICE_ROLE_KEY"))

	openAIModel := os.Getenv("OPENAI_MODEL")
	if openAIModel == "" {
		openAIModel = "gpt-3.5-turbo"
	}
	embedModel := os.Getenv("OPENAI_EMBED_MODEL")
	if embedModel == "" {
		embedModel = "text-embedding-3-small"
	}

	hfBaseURL := os.Getenv("HUGGINGFACE_BASE_URL")
	if hfBaseURL == "" {
		hfBaseURL = "https://api-inference.huggingface.co/models"
	}
	hfModel := os.Getenv("HUGGINGFACE_MODEL")
	if hfModel == "" {
		hfModel = "mistralai/Mistral-7B-Instruct-v0.2"
	}

	pplxBaseURL := os.Getenv("PERPLEXITY_BASE_URL")
	if pplxBaseURL == "" {
		pplxBaseURL = "https://api.perplexity.ai"
	}
	pplxChatModel := os.Getenv("PERPLEXITY_CHAT_MODEL")
	if pplxChatModel == "" {
		pplxChatModel = "sonar-pro"
	}
	pplxRAGModel := os.Getenv("PERPLEXITY_RAG_MODEL")
	if pplxRAGModel == "" {
		pplxRAGModel = "sonar-small-chat"
	}

	origins := []string{"*"}
	if v := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); v != "" {
		origins = origins[:0]
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
	}

	// rabbitMQ config; empty URL disables async ingestion
	rabbitQueue := os.Getenv("RABBIT_QUEUE")
	if rabbitQueue == "" {
		rabbitQueue = "rag_ingest_jobs"
	}

	return Config{
		HTTPAddr: addr,
		AppEnv:   appEnv,

		DBDriver: driver,
		DBDSN:    dsn,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		IdentityURL:        strings.TrimRight(identityURL, "/"),
		IdentityServiceKey: serviceKey,

		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:         openAIModel,
		OpenAIEmbedModel:    embedModel,
		HuggingFaceAPIKey:   os.Getenv("HUGGINGFACE_API_KEY"),
		HuggingFaceBaseURL:  hfBaseURL,
		HuggingFaceModel:    hfModel,
		PerplexityAPIKey:    firstNonEmpty(os.Getenv("PERPLEXITY_API_KEY"), os.Getenv("PPLX_API_KEY")),
		PerplexityBaseURL:   pplxBaseURL,
		PerplexityChatModel: pplxChatModel,
		PerplexityRAGModel:  pplxRAGModel,

		AdminToken:     os.Getenv("ADMIN_TOKEN"),
		AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),

		AllowedOrigins: origins,

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       rabbitQueue,
		WorkerConcurrency: workerConcurrency(os.Getenv("WORKER_CONCURRENCY")),
	}
}

func workerConcurrency(v string) int {
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
