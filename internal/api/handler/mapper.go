package handler

import (
	"math"

	"github.com/influencerlab/studio/internal/core/domain"
	"github.com/influencerlab/studio/internal/core/ports"
)

// --- Request → Service input ---

func toGenerateInput(req generateRequest, idempotencyKey string) ports.GenerateInput {
	return ports.GenerateInput{
		Type:           req.Type,
		Prompt:         req.Prompt,
		Style:          req.Style,
		CharacterID:    req.CharacterID,
		Width:          req.Width,
		Height:         req.Height,
		SourceImageURL: req.ImageURL,
		MotionStrength: req.MotionStrength,
		IdempotencyKey: idempotencyKey,
	}
}

func toOutcome(req backendCallbackRequest) ports.BackendOutcome {
	return ports.BackendOutcome{
		GenerationID: req.GenerationID,
		JobHandle:    req.JobHandle,
		Status:       domain.GenerationStatus(req.Status),
		ResultURL:    req.ResultURL,
		Reason:       req.Reason,
	}
}

func toCharacterInput(req createCharacterRequest, ownerID string) ports.CreateCharacterInput {
	return ports.CreateCharacterInput{
		OwnerID:     ownerID,
		Name:        req.Name,
		Description: req.Description,
		Gender:      req.Gender,
		Age:         req.Age,
		Ethnicity:   req.Ethnicity,
		HairColor:   req.HairColor,
		HairStyle:   req.HairStyle,
		EyeColor:    req.EyeColor,
		BodyType:    req.BodyType,
		ArtStyle:    req.ArtStyle,
	}
}

// --- Service result → HTTP response ---

func generationSelf(id string) generationLinks {
	return generationLinks{Self: "/v1/generations/" + id}
}

func toGenerateResponse(r *ports.GenerateResult) generateResponse {
	return generateResponse{
		GenerationID:   r.GenerationID,
		Status:         string(r.Status),
		ResultURL:      r.ResultURL,
		CreditsCharged: r.CreditsCharged,
		Balance:        r.Balance,
		Replayed:       r.Replayed,
		Links:          generationSelf(r.GenerationID),
	}
}

func toGenerationResponse(v ports.GenerationView) generationResponse {
	g := v.Generation
	resp := generationResponse{
		ID:             g.ID,
		Type:           string(g.Type),
		Prompt:         g.Prompt,
		Style:          g.Style,
		SourceImageURL: g.SourceImageURL,
		Status:         string(g.Status),
		ResultURL:      g.ResultURL,
		CreditsCharged: g.CreditsCharged,
		Watermarked:    g.Watermarked,
		FailureReason:  g.FailureReason,
		Refunded:       g.Refunded,
		CreatedAt:      g.CreatedAt.UTC(),
		UpdatedAt:      g.UpdatedAt.UTC(),
		Links:          generationSelf(g.ID),
	}
	if v.Character != nil {
		resp.Character = &characterSummaryResponse{
			ID:       v.Character.ID,
			Name:     v.Character.Name,
			ArtStyle: v.Character.ArtStyle,
		}
	}
	return resp
}

func toGenerationResponses(views []ports.GenerationView) []generationResponse {
	items := make([]generationResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toGenerationResponse(v))
	}
	return items
}

func toListGenerationsResponse(r *ports.ListGenerationsResult) listGenerationsResponse {
	return listGenerationsResponse{
		Data: toGenerationResponses(r.Items),
		Pagination: paginationResponse{
			Total:      r.Total,
			Page:       r.Page,
			Limit:      r.Limit,
			TotalPages: r.TotalPages,
		},
	}
}

func toDashboardResponse(d *ports.Dashboard) dashboardResponse {
	return dashboardResponse{
		Balance:     d.Balance,
		Tier:        string(d.Tier),
		Characters:  d.Characters,
		Generations: d.Generations,
		Recent:      toGenerationResponses(d.Recent),
	}
}

func toTransactionsResponse(p *ports.TransactionPage) listTransactionsResponse {
	items := make([]transactionResponse, 0, len(p.Items))
	for _, tx := range p.Items {
		items = append(items, transactionResponse{
			ID:           tx.ID,
			Amount:       tx.Amount,
			Type:         string(tx.Type),
			Description:  tx.Description,
			GenerationID: tx.GenerationID,
			BalanceAfter: tx.BalanceAfter,
			CreatedAt:    tx.CreatedAt.UTC(),
		})
	}
	totalPages := 0
	if p.Limit > 0 {
		totalPages = int(math.Ceil(float64(p.Total) / float64(p.Limit)))
	}
	return listTransactionsResponse{
		Data: items,
		Pagination: paginationResponse{
			Total:      p.Total,
			Page:       p.Page,
			Limit:      p.Limit,
			TotalPages: totalPages,
		},
	}
}

func toLedgerReportResponse(r *ports.LedgerReport) ledgerReportResponse {
	return ledgerReportResponse{
		UserID:            r.UserID,
		Balance:           r.Balance,
		TransactionsTotal: r.TransactionsTotal,
		Consistent:        r.Consistent,
	}
}
