package models

import "time"

// Outbound topic names, one message per tick per topic.
const (
	TopicPrice      = "price"
	TopicRegime     = "regime"
	TopicNews       = "news"
	TopicEdge       = "edge"
	TopicRisk       = "risk"
	TopicGovernance = "governance"
)

// TopicMessage is the envelope broadcast to clients and published to the
// decision stream.
type TopicMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type PricePayload struct {
	Pair  string  `json:"pair"`
	Price float64 `json:"price"`
}

type NewsPayload struct {
	Active bool `json:"active"`
}

type RiskPayload struct {
	Equity       float64 `json:"equity"`
	Drawdown     float64 `json:"drawdown"`
	PositionSize float64 `json:"position_size"`
	Volatility   float64 `json:"volatility"`
}

type GovernancePayload struct {
	IC           float64  `json:"ic"`
	KLDivergence float64  `json:"kl_divergence"`
	EntropyAvg   float64  `json:"entropy_avg"`
	Alerts       []string `json:"alerts,omitempty"`
}

// Decision is the full tuple produced by one pipeline tick.
type Decision struct {
	Pair       string            `json:"pair"`
	Timestamp  time.Time         `json:"timestamp"`
	Price      float64           `json:"price"`
	Regime     *RegimeResult     `json:"regime"`
	NewsActive bool              `json:"news_active"`
	Signal     *Signal           `json:"signal"`
	Risk       RiskPayload       `json:"risk"`
	Governance GovernancePayload `json:"governance"`
}

// Requests for the decision HTTP endpoints. Defined in domain for
// consistency and reuse.

type StateRequest struct {
	Pair string `query:"pair" json:"pair" default:"EURUSD" validate:"len=6,alphanum"`
}

type BacktestRequest struct {
	Pair    string  `query:"pair" json:"pair" default:"EURUSD" validate:"len=6,alphanum"`
	Bars    int     `query:"bars" json:"bars" default:"500" validate:"gte=200,lte=20000"`
	Kind    string  `query:"kind" json:"kind" default:"walk_forward" validate:"oneof=walk_forward shuffle spread_shock"`
	ShockPc float64 `query:"shock_pct" json:"shock_pct" default:"300" validate:"gte=0,lte=10000"`
}

type HistoryRequest struct {
	Pair string `query:"pair" json:"pair" default:"EURUSD" validate:"len=6,alphanum"`
	N    int    `query:"n" json:"n" default:"200" validate:"gte=1,lte=5000"`
}

type PairRequest struct {
	Pair string `query:"pair" json:"pair" validate:"required,len=6,alphanum"`
}

// BacktestJobPayload travels through the job queue to the backtest
// worker.
type BacktestJobPayload struct {
	JobID   string  `json:"job_id"`
	Pair    string  `json:"pair"`
	Bars    int     `json:"bars"`
	Kind    string  `json:"kind"`
	ShockPc float64 `json:"shock_pct"`
}

// BacktestStatus is the job lifecycle snapshot served to pollers.
type BacktestStatus struct {
	JobID    string      `json:"job_id"`
	Kind     string      `json:"kind"`
	Status   string      `json:"status"`
	Error    string      `json:"error,omitempty"`
	Result   interface{} `json:"result,omitempty"`
	Finished *time.Time  `json:"finished,omitempty"`
}
