package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/claimcookie"
	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/scrumkit/scrumkit/internal/repository"
)

// ClaimService reconciles anonymously created assets with a freshly
// authenticated user.
type ClaimService interface {
	// Claim transfers ownership of the assets whose IDs the client submitted
	// AND whose slugs appear in the signed per-type cookie. Returns counts of
	// rows actually reassigned; any database error aborts the whole claim.
	Claim(ctx context.Context, userID uuid.UUID, req model.ClaimRequest, cookies map[model.AssetType]string) (model.ClaimResult, error)
}

type ClaimServiceImpl struct {
	assets repository.AssetRepository
	codec  *claimcookie.Codec
	logger *zap.Logger
}

// NewClaimService constructs ClaimService.
func NewClaimService(assets repository.AssetRepository, codec *claimcookie.Codec, logger *zap.Logger) *ClaimServiceImpl {
	return &ClaimServiceImpl{assets: assets, codec: codec, logger: logger}
}

// Claim runs the dual-validated transfer per asset type.
//
// The client-supplied ID lists are untrusted and never authorize a write on
// their own; they only narrow which cookie-trusted rows to look up. A missing
// or unparseable cookie fails closed: that type contributes zero, without
// failing the claim.
func (s *ClaimServiceImpl) Claim(
	ctx context.Context, userID uuid.UUID, req model.ClaimRequest, cookies map[model.AssetType]string,
) (model.ClaimResult, error) {
	if userID == uuid.Nil {
		return model.ClaimResult{}, errors.New("validation: empty userID")
	}

	var res model.ClaimResult
	byType := map[model.AssetType][]uuid.UUID{
		model.AssetRetrospective: req.Retrospectives,
		model.AssetPokerSession:  req.PokerSessions,
	}

	for _, typ := range anon.Types() {
		ids := byType[typ]
		if len(ids) == 0 {
			continue
		}
		cfg, _ := anon.ConfigFor(typ)

		trusted, err := s.codec.Decode(cookies[typ])
		if err != nil || len(trusted) == 0 {
			s.logger.Debug("claim cookie absent or invalid, skipping type",
				zap.String("type", string(typ)))
			continue
		}

		n, err := s.assets.ClaimAssets(ctx, cfg, userID, ids, trusted)
		if err != nil {
			return model.ClaimResult{}, fmt.Errorf("claim %s: %w", cfg.DisplayName, err)
		}
		switch typ {
		case model.AssetRetrospective:
			res.Retrospectives = n
		case model.AssetPokerSession:
			res.PokerSessions = n
		}
		res.Total += n
	}
	return res, nil
}
