package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/castrank/internal/domain"
)

// Config holds the castrank configuration shared by castrun and castindex.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	LLM          LLMConfig          `yaml:"llm"`
	CrossEncoder CrossEncoderConfig `yaml:"crossencoder"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Index        IndexConfig        `yaml:"index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds the health/metrics listener settings. Port 0 disables it.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds Redis connection and key layout settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	IndexName        string   `yaml:"index_name"`
	PassageMemoSize  int      `yaml:"passage_memo_size"` // LRU entries for resolved passages, 0 disables
}

// EmbeddingConfig holds the OpenAI-compatible embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	BatchSize           int    `yaml:"batch_size"`
	CacheTTLSec         int    `yaml:"cache_ttl_sec"` // 0 keeps cached vectors forever
}

// LLMConfig holds the chat model used by the llm rewriter and the llm reranker.
type LLMConfig struct {
	APIKey           string  `yaml:"api_key"`
	BaseURL          string  `yaml:"base_url"`
	Model            string  `yaml:"model"`
	Temperature      float32 `yaml:"temperature"`
	MaxTokens        int     `yaml:"max_tokens"`
	SystemPrompt     string  `yaml:"system_prompt"`
	MaxResponseChars int     `yaml:"max_response_chars"` // previous answer length shown to the rewriter
}

// CrossEncoderConfig holds the cross-encoder reranking service settings.
type CrossEncoderConfig struct {
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	TimeoutSec int    `yaml:"timeout_sec"`
	BatchSize  int    `yaml:"batch_size"`
}

// PipelineConfig selects the stages of a run and where its output goes.
type PipelineConfig struct {
	Year           string   `yaml:"year"`
	OutputName     string   `yaml:"output_name"`
	OutputDir      string   `yaml:"output_dir"`
	TopicsFile     string   `yaml:"topics_file"`
	Utterance      string   `yaml:"utterance"`      // raw, manual, automatic
	ContextSource  string   `yaml:"context_source"` // canonical, ranked, none
	K              int      `yaml:"k"`
	Rewriter       string   `yaml:"rewriter"` // none, manual, automatic, table, llm
	RewritesFile   string   `yaml:"rewrites_file"`
	Retrievers     []string `yaml:"retrievers"` // bm25, dense, cached
	CachedRunFile  string   `yaml:"cached_run_file"`
	RRFK           int      `yaml:"rrf_k"`
	NumPrevTurns   int      `yaml:"num_prev_turns"` // 0 disables pool expansion
	Expander       string   `yaml:"expander"`       // none, prf
	PRFDocs        int      `yaml:"prf_docs"`
	PRFTerms       int      `yaml:"prf_terms"`
	PRFAlpha       *float64 `yaml:"prf_alpha"`
	Reranker       string   `yaml:"reranker"` // none, embedding, llm, crossencoder
	Reranker2      string   `yaml:"reranker2"`
	RerankTopK     int      `yaml:"rerank_top_k"`
	Rerank2TopK    int      `yaml:"rerank2_top_k"`
	StripPassageID bool     `yaml:"strip_passage_id"`
	Parallelism    int      `yaml:"parallelism"`
	// ContinueOnError keeps running after a failed query; the run still fails at the end.
	ContinueOnError bool `yaml:"continue_on_error"`
}

// IndexConfig holds castindex settings.
type IndexConfig struct {
	CollectionFile  string `yaml:"collection_file"`
	BatchSize       int    `yaml:"batch_size"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
	EmbedPassages   bool   `yaml:"embed_passages"`
	Recreate        bool   `yaml:"recreate"`
}

// Variant names accepted by the pipeline section.
var (
	utterances     = []string{"raw", "manual", "automatic"}
	contextSources = []string{"canonical", "ranked", "none"}
	rewriters      = []string{"none", "manual", "automatic", "table", "llm"}
	retrievers     = []string{"bm25", "dense", "cached"}
	expanders      = []string{"none", "prf"}
	rerankers      = []string{"none", "embedding", "llm", "crossencoder"}
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse expands env variables, decodes, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = domain.KeyPrefix
	}
	if c.Database.IndexName == "" {
		c.Database.IndexName = c.Database.KeyPrefix + "passages:idx"
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.LLM.MaxResponseChars <= 0 {
		c.LLM.MaxResponseChars = 500
	}
	if c.CrossEncoder.TimeoutSec <= 0 {
		c.CrossEncoder.TimeoutSec = 30
	}
	if c.CrossEncoder.BatchSize <= 0 {
		c.CrossEncoder.BatchSize = 32
	}

	p := &c.Pipeline
	setDefault(&p.Utterance, "raw")
	setDefault(&p.ContextSource, "ranked")
	setDefault(&p.Rewriter, "none")
	setDefault(&p.Expander, "none")
	setDefault(&p.Reranker, "none")
	setDefault(&p.Reranker2, "none")
	setDefault(&p.OutputDir, "runs")
	if len(p.Retrievers) == 0 {
		p.Retrievers = []string{"bm25"}
	}
	if p.K <= 0 {
		p.K = 1000
	}
	if p.RRFK <= 0 {
		p.RRFK = 60
	}
	if p.PRFDocs <= 0 {
		p.PRFDocs = 10
	}
	if p.PRFTerms <= 0 {
		p.PRFTerms = 10
	}
	if p.PRFAlpha == nil {
		alpha := 0.5
		p.PRFAlpha = &alpha
	}
	if p.Parallelism <= 0 {
		p.Parallelism = 1
	}

	if c.Index.BatchSize <= 0 {
		c.Index.BatchSize = 500
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}

// Validate checks settings both commands depend on and rejects unknown variant names.
// Errors wrap domain.ErrConfiguration.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrConfiguration}, args...)...))
	}

	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		fail("http.port must be between 0 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		fail("database.addrs is required")
	}
	if c.Embedding.Dimensions < 0 {
		fail("embedding.dimensions must not be negative")
	}

	p := &c.Pipeline
	oneOf(fail, "pipeline.utterance", p.Utterance, utterances)
	oneOf(fail, "pipeline.context_source", p.ContextSource, contextSources)
	oneOf(fail, "pipeline.rewriter", p.Rewriter, rewriters)
	oneOf(fail, "pipeline.expander", p.Expander, expanders)
	oneOf(fail, "pipeline.reranker", p.Reranker, rerankers)
	oneOf(fail, "pipeline.reranker2", p.Reranker2, rerankers)
	seen := make(map[string]bool, len(p.Retrievers))
	for _, r := range p.Retrievers {
		oneOf(fail, "pipeline.retrievers", r, retrievers)
		if seen[r] {
			fail("pipeline.retrievers lists %q twice", r)
		}
		seen[r] = true
	}
	if p.PRFAlpha != nil && (*p.PRFAlpha < 0 || *p.PRFAlpha > 1) {
		fail("pipeline.prf_alpha must be within [0, 1], got %v", *p.PRFAlpha)
	}
	if p.Reranker == "none" && p.Reranker2 != "none" {
		fail("pipeline.reranker2 requires pipeline.reranker")
	}

	return errors.Join(errs...)
}

// ValidateRun checks what castrun needs beyond Validate: inputs, outputs and the
// providers the selected stages call.
func (c *Config) ValidateRun() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrConfiguration}, args...)...))
	}

	p := &c.Pipeline
	if p.Year == "" {
		fail("pipeline.year is required")
	}
	if p.OutputName == "" {
		fail("pipeline.output_name is required")
	}
	if p.TopicsFile == "" {
		fail("pipeline.topics_file is required")
	}
	if p.Rewriter == "table" && p.RewritesFile == "" {
		fail("pipeline.rewriter table requires pipeline.rewrites_file")
	}
	if slices.Contains(p.Retrievers, "cached") && p.CachedRunFile == "" {
		fail("retriever cached requires pipeline.cached_run_file")
	}
	if c.needsEmbedding() && (c.Embedding.Model == "" || c.Embedding.Dimensions <= 0) {
		fail("dense retrieval and embedding reranking require embedding.model and embedding.dimensions")
	}
	if c.needsLLM() && c.LLM.Model == "" {
		fail("llm rewriting and llm reranking require llm.model")
	}
	if (p.Reranker == "crossencoder" || p.Reranker2 == "crossencoder") && c.CrossEncoder.BaseURL == "" {
		fail("reranker crossencoder requires crossencoder.base_url")
	}
	return errors.Join(errs...)
}

// ValidateIndex checks what castindex needs beyond Validate.
func (c *Config) ValidateIndex() error {
	var errs []error
	if c.Index.CollectionFile == "" {
		errs = append(errs, fmt.Errorf("%w: index.collection_file is required", domain.ErrConfiguration))
	}
	if c.Index.EmbedPassages && (c.Embedding.Model == "" || c.Embedding.Dimensions <= 0) {
		errs = append(errs, fmt.Errorf("%w: index.embed_passages requires embedding.model and embedding.dimensions",
			domain.ErrConfiguration))
	}
	return errors.Join(errs...)
}

func (c *Config) needsEmbedding() bool {
	p := &c.Pipeline
	return slices.Contains(p.Retrievers, "dense") || p.Reranker == "embedding" || p.Reranker2 == "embedding"
}

func (c *Config) needsLLM() bool {
	p := &c.Pipeline
	return p.Rewriter == "llm" || p.Reranker == "llm" || p.Reranker2 == "llm"
}

func oneOf(fail func(string, ...any), field, v string, allowed []string) {
	if !slices.Contains(allowed, v) {
		fail("%s must be one of %s, got %q", field, strings.Join(allowed, "|"), v)
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
