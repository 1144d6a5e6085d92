package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/strategy"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	aggregatorRetryCount = 3
	aggregatorRetryWait  = 500 * time.Millisecond
)

// QuoteRequest is the aggregator's quote contract.
type QuoteRequest struct {
	SourceChainID     uint64 `json:"sourceChainId"`
	DestChainID       uint64 `json:"destChainId"`
	SourceToken       string `json:"sourceToken"`
	DestToken         string `json:"destToken"`
	Amount            string `json:"amount"`
	Recipient         string `json:"recipient"`
	SlippageTolerance string `json:"slippageTolerance"`
}

// BridgeCall is the source-side settlement transaction the aggregator built
// for a priced route.
type BridgeCall struct {
	To    ethcommon.Address
	Value *big.Int
	Data  []byte
}

// BridgeStatus is the aggregator's view of a submitted transfer. DestTxHash
// is populated once the destination-side settlement landed.
type BridgeStatus struct {
	Status     string
	DestTxHash string
}

// Aggregator is the external bridge/DEX aggregator API surface the
// orchestrator consumes.
type Aggregator interface {
	Quote(ctx context.Context, req *QuoteRequest) (*Quote, error)
	BuildTransaction(ctx context.Context, routeID string) (*BridgeCall, error)
	Status(ctx context.Context, txHash string) (*BridgeStatus, error)
}

var _ Aggregator = (*AggregatorClient)(nil)

// AggregatorClient talks to the aggregator's HTTP API with bounded retries.
type AggregatorClient struct {
	baseURL    string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

func NewAggregatorClient(baseURL string, logger logrus.FieldLogger) *AggregatorClient {
	return &AggregatorClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type rpcQuote struct {
	DestAmount string `json:"destAmount"`
	FeeAmount  string `json:"feeAmount"`
	ETASeconds int64  `json:"etaSeconds"`
	RouteID    string `json:"bridgeRouteId"`
}

func (c *AggregatorClient) Quote(ctx context.Context, req *QuoteRequest) (*Quote, error) {
	var res rpcQuote
	if err := c.postJSON(ctx, "/quote", req, &res); err != nil {
		return nil, errors.Wrap(err, "aggregator quote")
	}
	destAmount, err := decimal.NewFromString(res.DestAmount)
	if err != nil {
		return nil, errors.Wrapf(err, "aggregator quote destAmount %q", res.DestAmount)
	}
	feeAmount, err := decimal.NewFromString(res.FeeAmount)
	if err != nil {
		return nil, errors.Wrapf(err, "aggregator quote feeAmount %q", res.FeeAmount)
	}
	return &Quote{
		DestAmount: destAmount,
		FeeAmount:  feeAmount,
		ETASeconds: res.ETASeconds,
		RouteID:    res.RouteID,
	}, nil
}

type rpcBridgeCall struct {
	To       string       `json:"to"`
	CallData string       `json:"calldata"`
	Value    *hexutil.Big `json:"value"`
}

func (c *AggregatorClient) BuildTransaction(ctx context.Context, routeID string) (*BridgeCall, error) {
	var res rpcBridgeCall
	if err := c.postJSON(ctx, "/build-tx", map[string]string{"bridgeRouteId": routeID}, &res); err != nil {
		return nil, errors.Wrap(err, "aggregator build transaction")
	}
	if !ethcommon.IsHexAddress(res.To) {
		return nil, errors.Errorf("aggregator returned invalid target address %q", res.To)
	}
	data, err := hexutil.Decode(res.CallData)
	if err != nil {
		return nil, errors.Wrap(err, "aggregator calldata")
	}
	value := new(big.Int)
	if res.Value != nil {
		value = (*big.Int)(res.Value)
	}
	return &BridgeCall{
		To:    ethcommon.HexToAddress(res.To),
		Value: value,
		Data:  data,
	}, nil
}

type rpcBridgeStatus struct {
	Status     string `json:"status"`
	DestTxHash string `json:"destTxHash"`
}

func (c *AggregatorClient) Status(ctx context.Context, txHash string) (*BridgeStatus, error) {
	var res rpcBridgeStatus
	endpoint := fmt.Sprintf("/status?txHash=%s", url.QueryEscape(txHash))
	if err := c.getJSON(ctx, endpoint, &res); err != nil {
		return nil, errors.Wrap(err, "aggregator status")
	}
	return &BridgeStatus{
		Status:     res.Status,
		DestTxHash: res.DestTxHash,
	}, nil
}

func (c *AggregatorClient) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return retry.Retry(func(attempt uint) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		if err := c.do(req, out); err != nil {
			c.logger.WithFields(logrus.Fields{
				"path":    path,
				"attempt": attempt,
				"err":     err,
			}).Warn("Aggregator request failed")
			return err
		}
		return nil
	}, strategy.Limit(aggregatorRetryCount), strategy.Wait(aggregatorRetryWait))
}

func (c *AggregatorClient) getJSON(ctx context.Context, path string, out any) error {
	return retry.Retry(func(attempt uint) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		if err := c.do(req, out); err != nil {
			c.logger.WithFields(logrus.Fields{
				"path":    path,
				"attempt": attempt,
				"err":     err,
			}).Warn("Aggregator request failed")
			return err
		}
		return nil
	}, strategy.Limit(aggregatorRetryCount), strategy.Wait(aggregatorRetryWait))
}

func (c *AggregatorClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("aggregator returned %d: %s", resp.StatusCode, raw)
	}
	return json.Unmarshal(raw, out)
}
