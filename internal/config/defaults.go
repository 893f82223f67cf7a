package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexPath == "" {
		cfg.Storage.IndexPath = "./data/faq_index"
	}
	if cfg.Corpus.Dataset == "" {
		cfg.Corpus.Dataset = "akbank/faq-tr"
	}
	if cfg.Corpus.Subset == "" {
		cfg.Corpus.Subset = "default"
	}
	if cfg.Corpus.Split == "" {
		cfg.Corpus.Split = "train"
	}
	if cfg.Corpus.HubURL == "" {
		cfg.Corpus.HubURL = "https://datasets-server.huggingface.co"
	}
	if cfg.Corpus.TokenEnv == "" {
		cfg.Corpus.TokenEnv = "HF_TOKEN"
	}
	if cfg.Corpus.TimeoutSecs == 0 {
		cfg.Corpus.TimeoutSecs = 15
	}
	if cfg.Corpus.PageSize == 0 {
		cfg.Corpus.PageSize = 100
	}
	if cfg.Corpus.Fallback == "" {
		cfg.Corpus.Fallback = FallbackDemo
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelName == "" {
		cfg.Embedding.ModelName = "sentence-transformers/paraphrase-multilingual-mpnet-base-v2"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./data/models/paraphrase-multilingual-mpnet-base-v2.onnx"
	}
	if cfg.Embedding.TokenizerPath == "" {
		cfg.Embedding.TokenizerPath = "./data/models/tokenizer.json"
	}
	if cfg.Embedding.OutputName == "" {
		cfg.Embedding.OutputName = "sentence_embedding"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 128
	}
	if cfg.Embedding.Threads == 0 {
		cfg.Embedding.Threads = 1
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = MaxTopK
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.5-flash"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "GOOGLE_API_KEY"
	}
	if cfg.LLM.Temperature == nil {
		cfg.LLM.Temperature = Float64(0.2)
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 60
	}
	if cfg.LLM.MaxRetries == nil {
		cfg.LLM.MaxRetries = Int(2)
	}
}
