package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Sternrassler/univ-admin-client/pkg/client"
	"github.com/Sternrassler/univ-admin-client/pkg/events"
)

type rechargeInput struct {
	Amount float64 `validate:"gt=0"`
}

type rechargeResponse struct {
	LiqPay struct {
		URL string `json:"url"`
	} `json:"liqpay"`
}

// RechargeBalance starts a balance recharge and returns the checkout URL the
// student pays at.
func (a *API) RechargeBalance(ctx context.Context, amount float64) (string, error) {
	if err := validateInput(rechargeInput{Amount: amount}); err != nil {
		return "", err
	}
	req := client.Request{
		Method: http.MethodPost,
		Path:   "/payment/recharge-balance",
		Params: map[string]any{"amount": amount},
	}
	resp, err := client.Call(ctx, a.client, OpRechargeBalance, req, func(status int, body json.RawMessage) (rechargeResponse, error) {
		var r rechargeResponse
		if status != http.StatusOK && status != http.StatusCreated {
			return r, errUnexpected(status)
		}
		if err := json.Unmarshal(body, &r); err != nil {
			return r, err
		}
		if r.LiqPay.URL == "" {
			return r, errMissing("liqpay.url")
		}
		return r, nil
	})
	if err != nil {
		return "", err
	}

	a.logger.Info().Float64("amount", amount).Msg("Balance recharge started")
	a.publish(events.UserUpdated{Part: events.PartPayments})
	return resp.LiqPay.URL, nil
}

func errUnexpected(status int) error {
	return fmt.Errorf("unexpected status %d", status)
}

func errMissing(field string) error {
	return fmt.Errorf("missing %s", field)
}
