package dataservice

import "math"

const (
	RSIPeriod        = 14
	RSIOversold      = 30.0
	RSIOverbought    = 70.0
	MACDFast         = 12
	MACDSlow         = 26
	MACDSignalPeriod = 9
)

type Direction string

const (
	Long    Direction = "LONG"
	Short   Direction = "SHORT"
	Neutral Direction = "NEUTRAL"
)

type Signal struct {
	Indicator string    `json:"indicator"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"` // 0..1
	Value     float64   `json:"value"`
}

// SMA is the mean of the last period values, or 0 when there are fewer.
func SMA(data []float64, period int) float64 {
	if period <= 0 || len(data) < period {
		return 0
	}
	sum := 0.0
	for _, v := range data[len(data)-period:] {
		sum += v
	}
	return sum / float64(period)
}

// RSI uses simple averages of the last period gains and losses:
// 100 - 100/(1 + avgGain/avgLoss). It returns 50 with fewer than period+1
// points or no movement, and 100 when there were gains but no losses.
func RSI(data []float64, period int) float64 {
	if period <= 0 || len(data) < period+1 {
		return 50
	}

	gains, losses := 0.0, 0.0
	for i := len(data) - period; i < len(data); i++ {
		change := data[i] - data[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}

	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - (100 / (1 + rs))
}

// EMA returns the exponential moving average series seeded with the first
// value: e[0] = x[0], e[i] = a*x[i] + (1-a)*e[i-1], a = 2/(span+1).
func EMA(data []float64, span int) []float64 {
	if len(data) == 0 || span <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1)
	out := make([]float64, len(data))
	out[0] = data[0]
	for i := 1; i < len(data); i++ {
		out[i] = alpha*data[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD returns the last MACD line value, its signal line value and their
// difference (histogram).
func MACD(data []float64, fast, slow, signal int) (float64, float64, float64) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	emaFast := EMA(data, fast)
	emaSlow := EMA(data, slow)
	line := make([]float64, len(data))
	for i := range data {
		line[i] = emaFast[i] - emaSlow[i]
	}
	sig := EMA(line, signal)
	last := len(data) - 1
	return line[last], sig[last], line[last] - sig[last]
}

func RSISignal(data []float64) Signal {
	value := RSI(data, RSIPeriod)
	s := Signal{Indicator: "RSI", Direction: Neutral, Value: value}
	switch {
	case value < RSIOversold:
		s.Direction = Long
		s.Strength = (RSIOversold - value) / RSIOversold
	case value > RSIOverbought:
		s.Direction = Short
		s.Strength = (value - RSIOverbought) / (100 - RSIOverbought)
	}
	s.Strength = math.Min(s.Strength, 1)
	return s
}

func MACDSignal(data []float64) Signal {
	_, _, hist := MACD(data, MACDFast, MACDSlow, MACDSignalPeriod)
	s := Signal{Indicator: "MACD", Direction: Neutral, Value: hist}
	switch {
	case hist > 0:
		s.Direction = Long
	case hist < 0:
		s.Direction = Short
	}
	if s.Direction != Neutral {
		s.Strength = math.Min(math.Abs(hist)*100, 1)
	}
	return s
}

// CombinedSignal votes RSI and MACD (each only when there is enough data)
// by summed strength. The winning side's strength is its share of the total;
// a tie is neutral.
func CombinedSignal(data []float64) (Direction, float64, []Signal) {
	var signals []Signal
	if len(data) >= RSIPeriod+1 {
		signals = append(signals, RSISignal(data))
	}
	if len(data) >= MACDSlow+1 {
		signals = append(signals, MACDSignal(data))
	}

	longScore, shortScore := 0.0, 0.0
	for _, s := range signals {
		switch s.Direction {
		case Long:
			longScore += s.Strength
		case Short:
			shortScore += s.Strength
		}
	}

	total := longScore + shortScore
	switch {
	case total == 0, longScore == shortScore:
		return Neutral, 0, signals
	case longScore > shortScore:
		return Long, longScore / total, signals
	default:
		return Short, shortScore / total, signals
	}
}
