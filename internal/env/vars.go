package env

import "time"

// Context budget overrides (§4.F).
var (
	BudgetL0 = RegisterIntVar("MA_BUDGET_L0", 500, "Token budget for the identity_schema layer.", ComponentBudget)
	BudgetL1 = RegisterIntVar("MA_BUDGET_L1", 200, "Token budget for the active_context layer.", ComponentBudget)
	BudgetL2 = RegisterIntVar("MA_BUDGET_L2", 500, "Token budget for the event_log layer.", ComponentBudget)
	BudgetL3 = RegisterIntVar("MA_BUDGET_L3", 2000, "Token budget for the verified_fact layer.", ComponentBudget)
	BudgetL4 = RegisterIntVar("MA_BUDGET_L4", 300, "Token budget for the operational_knowledge layer.", ComponentBudget)
	BudgetTotal = RegisterIntVar("MA_BUDGET_TOTAL", 4000, "Total token ceiling across all layers.", ComponentBudget)
)

// Safety filter overrides (§4.G).
var (
	SafetyEnabled     = RegisterBoolVar("MA_SAFETY_ENABLED", true, "Enable the safety filter before upsert.", ComponentSafety)
	SafetyMaxLength   = RegisterIntVar("MA_SAFETY_MAX_LENGTH", 2000, "Maximum content length in characters.", ComponentSafety)
	SafetyPIIAction   = RegisterStringVar("MA_SAFETY_PII_ACTION", "redact", "Action on PII detection: allow|warn|redact|block.", ComponentSafety)
	SafetySensitive   = RegisterStringVar("MA_SAFETY_SENSITIVE_WORDS", "", "Comma-separated sensitive word list.", ComponentSafety)
)

// Conflict detector overrides (§4.H).
var (
	ConflictSimilarityThreshold = RegisterFloatVar("MA_CONFLICT_SIMILARITY_THRESHOLD", 0.85, "Minimum vector score to treat a hit as the same entity.", ComponentConflict)
	ConflictTemporalDays        = RegisterIntVar("MA_CONFLICT_TEMPORAL_DAYS", 7, "Day window for temporal conflict detection.", ComponentConflict)
	ConflictConfidenceDiff      = RegisterFloatVar("MA_CONFLICT_CONFIDENCE_DIFF", 0.3, "Confidence delta that triggers a confidence conflict.", ComponentConflict)
)

// Vector index mode (§4.B).
var (
	VectorIndexMode      = RegisterStringVar("MA_VECTOR_INDEX_MODE", "embedded", "Vector index deployment mode: remote|embedded.", ComponentVector)
	VectorIndexURL       = RegisterStringVar("MA_VECTOR_INDEX_URL", "", "Postgres/pgvector DSN for remote mode.", ComponentVector)
	VectorIndexDir       = RegisterStringVar("MA_VECTOR_INDEX_DIR", ".memoryanchor/vectors", "Directory for embedded-mode vector files.", ComponentVector)
	MaxConstitutionItems = RegisterIntVar("MA_MAX_CONSTITUTION_ITEMS", 20, "Cap on indexed L0 items merged into get_constitution.", ComponentVector)
)

// Embedding provider selection (§4.A).
var (
	EmbeddingProvider    = RegisterStringVar("MA_EMBEDDING_PROVIDER", "hash", "Embedding provider: hash (deterministic, offline) or openai (OPENAI_API_KEY-backed).", ComponentVector)
	EmbeddingOpenAIModel = RegisterStringVar("MA_EMBEDDING_OPENAI_MODEL", "text-embedding-3-small", "OpenAI embeddings model, used when MA_EMBEDDING_PROVIDER=openai.", ComponentVector)
	EmbeddingOpenAIBase  = RegisterStringVar("MA_EMBEDDING_OPENAI_BASE_URL", "", "Optional OpenAI-compatible API base URL override.", ComponentVector)
)

// refine_memory LLM provider selection (§6/§9).
var (
	RefineLLMProvider = RegisterStringVar("MA_REFINE_LLM_PROVIDER", "none", "refine_memory compression backend: none (deterministic local fallback) or anthropic (ANTHROPIC_API_KEY-backed).", ComponentKernel)
	RefineLLMModel    = RegisterStringVar("MA_REFINE_LLM_MODEL", "claude-3-haiku-20240307", "Anthropic model used when MA_REFINE_LLM_PROVIDER=anthropic.", ComponentKernel)
)

// Cloud sync overrides (§4.L).
var (
	CloudSyncKeyPath = RegisterStringVar("MA_CLOUD_SYNC_KEY", "", "Path to the local AES-256 encryption key file.", ComponentCloudSync)
	CloudSyncBucket  = RegisterStringVar("MA_CLOUD_SYNC_DIR", ".memoryanchor/cloud", "Filesystem-backed object storage root.", ComponentCloudSync)
)

// Server / approval overrides.
var (
	APIKey               = RegisterStringVar("MA_API_KEY", "", "Bearer/API key required on every HTTP endpoint except /healthz. Empty disables the check.", ComponentServer)
	ApprovalsNeeded      = RegisterIntVar("MA_APPROVALS_NEEDED", 3, "Number of approvals required to apply an identity change.", ComponentKernel)
	PendingSettleTimeout = RegisterDurationVar("MA_SETTLE_TIMEOUT", 2*time.Second, "Bounded settle window tests may wait for eventual consistency.", ComponentKernel)
	LogLevel             = RegisterStringVar("MA_LOG_LEVEL", "info", "zap log level.", ComponentServer)
)

// Memory Kernel confidence gating (§4.I).
var (
	ConfidenceSavedThreshold = RegisterFloatVar("MA_CONFIDENCE_SAVED", 0.9, "Minimum confidence for an ai_extraction/external_ai memory to save directly.", ComponentKernel)
	ConfidencePendingFloor   = RegisterFloatVar("MA_CONFIDENCE_PENDING_FLOOR", 0.7, "Minimum confidence for an ai_extraction/external_ai memory to enter the pending queue instead of being rejected.", ComponentKernel)
	DefaultCollection        = RegisterStringVar("MA_COLLECTION", "default", "Vector index collection name for the current project.", ComponentKernel)
)
