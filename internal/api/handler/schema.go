package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

type paginationResponse struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// --- Generations ---

// generateRequest carries every field either generation type accepts. The
// core validator decides which ones apply, so only shape is checked here.
type generateRequest struct {
	Type           string `json:"type"`
	Prompt         string `json:"prompt"`
	Style          string `json:"style"`
	CharacterID    string `json:"character_id"`
	Width          *int   `json:"width"`
	Height         *int   `json:"height"`
	ImageURL       string `json:"image_url"`
	MotionStrength *int   `json:"motion_strength"`
}

type generationLinks struct {
	Self string `json:"self"`
}

type generateResponse struct {
	GenerationID   string          `json:"generation_id"`
	Status         string          `json:"status"`
	ResultURL      string          `json:"result_url,omitempty"`
	CreditsCharged int64           `json:"credits_charged"`
	Balance        int64           `json:"balance"`
	Replayed       bool            `json:"replayed,omitempty"`
	Links          generationLinks `json:"_links"`
}

type characterSummaryResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ArtStyle string `json:"art_style"`
}

type generationResponse struct {
	ID             string                    `json:"id"`
	Type           string                    `json:"type"`
	Prompt         string                    `json:"prompt"`
	Style          string                    `json:"style,omitempty"`
	SourceImageURL string                    `json:"source_image_url,omitempty"`
	Status         string                    `json:"status"`
	ResultURL      string                    `json:"result_url,omitempty"`
	CreditsCharged int64                     `json:"credits_charged"`
	Watermarked    bool                      `json:"watermarked"`
	FailureReason  string                    `json:"failure_reason,omitempty"`
	Refunded       bool                      `json:"refunded,omitempty"`
	Character      *characterSummaryResponse `json:"character,omitempty"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
	Links          generationLinks           `json:"_links"`
}

type listGenerationsResponse struct {
	Data       []generationResponse `json:"data"`
	Pagination paginationResponse   `json:"pagination"`
}

type dashboardResponse struct {
	Balance     int64                `json:"balance"`
	Tier        string               `json:"tier"`
	Characters  int64                `json:"characters"`
	Generations int64                `json:"generations"`
	Recent      []generationResponse `json:"recent"`
}

// --- Backend callbacks ---

type backendCallbackRequest struct {
	GenerationID string `json:"generation_id" validate:"required"`
	JobHandle    string `json:"job_handle"    validate:"required"`
	Status       string `json:"status"        validate:"required,oneof=processing completed failed"`
	ResultURL    string `json:"result_url"    validate:"omitempty,url"`
	Reason       string `json:"reason"`
}

type acceptedResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count,omitempty"`
}

// --- Characters ---

type createCharacterRequest struct {
	Name        string `json:"name"        validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Gender      string `json:"gender"`
	Age         int    `json:"age"         validate:"min=0,max=120"`
	Ethnicity   string `json:"ethnicity"`
	HairColor   string `json:"hair_color"`
	HairStyle   string `json:"hair_style"`
	EyeColor    string `json:"eye_color"`
	BodyType    string `json:"body_type"`
	ArtStyle    string `json:"art_style"   validate:"required"`
}

// --- Credits ---

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

type transactionResponse struct {
	ID           string    `json:"id"`
	Amount       int64     `json:"amount"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	GenerationID string    `json:"generation_id,omitempty"`
	BalanceAfter int64     `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

type listTransactionsResponse struct {
	Data       []transactionResponse `json:"data"`
	Pagination paginationResponse    `json:"pagination"`
}

type grantRequest struct {
	Amount      int64  `json:"amount"      validate:"required,ne=0"`
	Type        string `json:"type"        validate:"omitempty,oneof=grant adjustment"`
	Description string `json:"description" validate:"max=200"`
}

type grantResponse struct {
	UserID        string `json:"user_id"`
	Balance       int64  `json:"balance"`
	TransactionID string `json:"transaction_id"`
}

type ledgerReportResponse struct {
	UserID            string `json:"user_id"`
	Balance           int64  `json:"balance"`
	TransactionsTotal int64  `json:"transactions_total"`
	Consistent        bool   `json:"consistent"`
}
