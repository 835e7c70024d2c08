package main

import (
	"fmt"
	"strings"
	"time"

	"delayed-pool-go/internal/models"
)

// partFlags collects repeated --part values of the form
// <recipient>=<units>[@<delay>]
type partFlags []string

func (p *partFlags) String() string { return strings.Join(*p, ",") }

func (p *partFlags) Set(value string) error {
	*p = append(*p, value)
	return nil
}

func parsePart(asset models.AssetConfig, value string, feeRateBps uint16) (models.PayoutPart, error) {
	recipient, rest, ok := strings.Cut(value, "=")
	if !ok || recipient == "" || rest == "" {
		return models.PayoutPart{}, fmt.Errorf("invalid part %q, expected <recipient>=<units>[@<delay>]", value)
	}

	amountStr, delayStr, hasDelay := strings.Cut(rest, "@")
	amount, err := asset.ParseUnits(amountStr)
	if err != nil {
		return models.PayoutPart{}, fmt.Errorf("part %q: %w", value, err)
	}

	part := models.PayoutPart{
		Recipient:  strings.TrimSpace(recipient),
		Amount:     amount,
		FeeRateBps: feeRateBps,
	}
	if hasDelay {
		part.Delay, err = time.ParseDuration(delayStr)
		if err != nil {
			return models.PayoutPart{}, fmt.Errorf("part %q: invalid delay: %w", value, err)
		}
	}
	return part, nil
}
