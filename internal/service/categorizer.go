package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jask/ledgerchat/internal/database/repository"
	"github.com/jask/ledgerchat/internal/domain"
	"github.com/jask/ledgerchat/internal/llm"
)

const (
	fallbackCategory      = "other"
	classifyTemperature   = 0.1
	classifyMaxTokens     = 120
	classifyTimeout       = 30 * time.Second
	confidenceUnspecified = "medium"
)

const classifyPrompt = `Analyze this bank transaction and classify it.

Transaction description: %s
Transaction type: %s
Amount: %.2f

Available categories: %s

Respond with ONLY a JSON object (no markdown, no explanation) in this exact format:
{"category": "category_name", "recipient_or_payer": "name or null", "confidence": "high/medium/low"}

Rules:
- category must be one from the available categories list
- recipient_or_payer should be the business/person name if identifiable, otherwise null
- confidence: high if category is obvious, medium if reasonable guess, low if uncertain`

// Classification is the classifier's verdict for one transaction.
type Classification struct {
	Category         string
	RecipientOrPayer string
	Confidence       string
}

// CategorizerService labels uncategorised transactions with the
// completion service.
type CategorizerService struct {
	Transactions *repository.TransactionRepo
	Categories   *repository.CategoryRepo
	Provider     llm.Completer
	Log          zerolog.Logger
}

type ClassifyResult struct {
	Classified int
	Fallbacks  int
}

// ClassifyPending classifies up to limit uncategorised transactions
// (all when limit <= 0). Completion failures degrade to "other"; store
// failures stop the run.
func (s *CategorizerService) ClassifyPending(ctx context.Context, limit int) (ClassifyResult, error) {
	res := ClassifyResult{}
	categories, err := s.Categories.Names(ctx)
	if err != nil {
		return res, fmt.Errorf("categories: %w", err)
	}
	pending, err := s.Transactions.Unclassified(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("unclassified: %w", err)
	}
	for _, tx := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		c := s.Classify(ctx, tx, categories)
		if err := s.Transactions.UpdateClassification(ctx, tx.ID, c.Category, c.RecipientOrPayer); err != nil {
			return res, err
		}
		res.Classified++
		if c.Confidence == "low" {
			res.Fallbacks++
		}
		s.Log.Debug().
			Int64("id", tx.ID).
			Str("category", c.Category).
			Str("confidence", c.Confidence).
			Msg("classified transaction")
	}
	return res, nil
}

// Classify asks the provider for a category from categories. Any failure
// yields the "other" category with low confidence.
func (s *CategorizerService) Classify(ctx context.Context, tx domain.Transaction, categories []string) Classification {
	fallback := Classification{Category: fallbackCategory, Confidence: "low"}
	if s.Provider == nil {
		return fallback
	}
	kind := "income/deposit"
	if tx.Kind() == domain.Debit {
		kind = "payment/expense"
	}
	resp, err := s.Provider.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf(classifyPrompt, tx.Description, kind, math.Abs(tx.Amount), strings.Join(categories, ", ")),
		}},
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
		Timeout:     classifyTimeout,
	})
	if err != nil {
		s.Log.Warn().Err(err).Int64("id", tx.ID).Msg("classification failed")
		return fallback
	}
	return parseClassification(resp.Content, categories)
}

func parseClassification(raw string, categories []string) Classification {
	var reply struct {
		Category         string  `json:"category"`
		RecipientOrPayer *string `json:"recipient_or_payer"`
		Confidence       string  `json:"confidence"`
	}
	if err := llm.DecodeJSON(raw, &reply); err != nil {
		return Classification{Category: fallbackCategory, Confidence: "low"}
	}
	c := Classification{Category: fallbackCategory, Confidence: reply.Confidence}
	for _, known := range categories {
		if strings.EqualFold(strings.TrimSpace(reply.Category), known) {
			c.Category = known
			break
		}
	}
	if reply.RecipientOrPayer != nil {
		name := strings.TrimSpace(*reply.RecipientOrPayer)
		if !strings.EqualFold(name, "null") && !strings.EqualFold(name, "none") {
			c.RecipientOrPayer = name
		}
	}
	if c.Confidence == "" {
		c.Confidence = confidenceUnspecified
	}
	return c
}
