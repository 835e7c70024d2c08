package pool

import (
	"context"
	"fmt"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SetFeeRate changes the advisory default fee rate
func (s *Service) SetFeeRate(ctx context.Context, caller string, feeRateBps uint16) error {
	return s.updateParameters(ctx, caller, "fee_rate", func(p *models.Parameters) error {
		if feeRateBps < p.MinFeeRateBps || feeRateBps > p.MaxFeeRateBps {
			return fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidFeeRate, feeRateBps, p.MinFeeRateBps, p.MaxFeeRateBps)
		}
		p.CurrentFeeRateBps = feeRateBps
		return nil
	})
}

// SetAdmin hands the administrator role to newAdmin
func (s *Service) SetAdmin(ctx context.Context, caller, newAdmin string) error {
	return s.updateParameters(ctx, caller, "admin", func(p *models.Parameters) error {
		if !ValidAccount(newAdmin) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, newAdmin)
		}
		p.AdminId = newAdmin
		return nil
	})
}

// UpdateParameters replaces the bounds. The administrator identity is not
// part of the update; use SetAdmin for that.
func (s *Service) UpdateParameters(ctx context.Context, caller string, params models.Parameters) error {
	return s.updateParameters(ctx, caller, "bounds", func(p *models.Parameters) error {
		params.AdminId = p.AdminId
		if err := ValidateParameters(&params); err != nil {
			return err
		}
		*p = params
		return nil
	})
}

func (s *Service) updateParameters(ctx context.Context, caller, what string, mutate func(p *models.Parameters) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		params, err := s.requireAdmin(ctx, tx, caller)
		if err != nil {
			return err
		}
		if err := mutate(params); err != nil {
			return err
		}
		params.UpdatedAt = s.clock.Now()
		return tx.SaveParameters(ctx, params)
	})
	if err != nil {
		zap.L().Warn("Parameter update rejected", zap.String("update", what), zap.Error(err))
		return err
	}

	zap.L().Info("Parameters updated", zap.String("update", what))
	return nil
}

// SetBlacklist adds account to or removes it from the blacklist
func (s *Service) SetBlacklist(ctx context.Context, caller, account string, add bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := s.requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		if !ValidAccount(account) {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, account)
		}
		return tx.SetBlacklisted(ctx, account, add)
	})
	if err != nil {
		zap.L().Warn("Blacklist update rejected", zap.Error(err))
		return err
	}

	zap.L().Info("Blacklist updated", zap.String("account", account), zap.Bool("banned", add))
	return nil
}

// SetOracle stores an informational exchange rate. Nothing in the ledger reads it.
func (s *Service) SetOracle(ctx context.Context, caller string, rate decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		if _, err := s.requireAdmin(ctx, tx, caller); err != nil {
			return err
		}
		if !rate.IsPositive() {
			return fmt.Errorf("%w: oracle rate must be positive, got %s", ErrInvalidAmount, rate)
		}
		return tx.SaveOracle(ctx, &models.OracleValue{Rate: rate, UpdatedAt: s.clock.Now()})
	})
	if err != nil {
		zap.L().Warn("Oracle update rejected", zap.Error(err))
		return err
	}

	zap.L().Info("Oracle updated", zap.String("rate", rate.String()))
	return nil
}
