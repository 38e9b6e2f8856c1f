package config

import (
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"curvebond/domain/curve"
	"curvebond/domain/model"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

var (
	ErrorInvalidCurveType       = fmt.Errorf("curve_type must be one of 'constant', 'linear' or 'square_root'")
	ErrorInvalidCurveParameter  = fmt.Errorf("invalid curve parameter")
	ErrorInvalidDecimals        = fmt.Errorf("invalid decimal places")
	ErrorNoReserveDenom         = fmt.Errorf("no reserve_denom is defined")
	ErrorInvalidUnbondingPeriod = fmt.Errorf("invalid unbonding period")
	ErrorInvalidDonorMatchSplit = fmt.Errorf("invalid donor match split")

	ErrorInvalidSettleInterval = fmt.Errorf("invalid time interval for settle process")
	ErrorInvalidPayoutInterval = fmt.Errorf("invalid time interval for payout process")
	ErrorInvalidPayoutTimeout  = fmt.Errorf("invalid payout timeout")
	ErrorInvalidMaxRetry       = fmt.Errorf("max_retry must be positive")

	ErrorInvalidLogLevel = fmt.Errorf("invalid log level")
)

var (
	TrailingSlashRE = regexp.MustCompile("/+$")
)

var (
	dbUri        string
	reserveDenom string

	curveParams   curve.Params
	decimalPlaces curve.DecimalPlaces
	bondingCurve  *curve.Curve

	unbondingPeriod time.Duration
	donorMatchSplit model.Split

	settleInterval time.Duration
	payoutInterval time.Duration
	payoutTimeout  time.Duration
	maxRetry       int

	httpAddress    string
	metricsAddress string
	pidFile        string
	logLevel       zapcore.Level
)

func init() {
	setDefaults()
}

func setDefaults() {
	viper.SetDefault("supply_decimals", 6)
	viper.SetDefault("reserve_decimals", 6)
	viper.SetDefault("curve_scale", 0)
	viper.SetDefault("donor_match_split", "40/40/20")
	viper.SetDefault("settle_interval", "1m")
	viper.SetDefault("payout_interval", "1m")
	viper.SetDefault("payout_timeout", "10m")
	viper.SetDefault("max_retry", 5)
	viper.SetDefault("http_address", ":8080")
	viper.SetDefault("metrics_address", ":9090")
	viper.SetDefault("pid_file", "curvebond.pid")
	viper.SetDefault("log_level", "info")
}

func ReadConfig(filePath string) {
	viper.SetConfigFile(filePath)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("⚠️ Failed reading config file: %v\n", err.Error())
	}

	err := initializeVariables()
	if err != nil {
		log.Fatalf("Configuration error - %v\n", err.Error())
	}
}

// This method processes the configuration parameters and keeps the processed values
// in some variables for later accesses rapidly.
func initializeVariables() error {
	var err error

	// Database stuff
	dbUri = TrailingSlashRE.ReplaceAllString(viper.GetString("service_db_uri"), "")

	// Reserve stuff
	reserveDenom = strings.TrimSpace(viper.GetString("reserve_denom"))
	if reserveDenom == "" {
		return ErrorNoReserveDenom
	}

	//---------------------------------------------------------------
	// curve
	curveParams, err = readCurveParams()
	if err != nil {
		return err
	}

	supplyDecimals := viper.GetInt("supply_decimals")
	reserveDecimals := viper.GetInt("reserve_decimals")
	if supplyDecimals < 0 || reserveDecimals < 0 {
		return ErrorInvalidDecimals
	}
	decimalPlaces = curve.NewDecimalPlaces(uint32(supplyDecimals), uint32(reserveDecimals))

	shape, err := curveParams.Shape()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrorInvalidCurveParameter, err)
	}
	bondingCurve, err = curve.New(shape, decimalPlaces)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrorInvalidCurveParameter, err)
	}

	//---------------------------------------------------------------
	// unbonding period
	unbondingPeriod, err = time.ParseDuration(viper.GetString("unbonding_period"))
	if err != nil || unbondingPeriod < 0 {
		return ErrorInvalidUnbondingPeriod
	}

	//---------------------------------------------------------------
	// donor match
	donorMatchSplit, err = model.ParseSplit(viper.GetString("donor_match_split"))
	if err != nil {
		return ErrorInvalidDonorMatchSplit
	}

	//---------------------------------------------------------------
	// settle interval
	settleInterval, err = time.ParseDuration(viper.GetString("settle_interval"))
	if err != nil || settleInterval <= 0 {
		return ErrorInvalidSettleInterval
	}

	//---------------------------------------------------------------
	// payout interval
	payoutInterval, err = time.ParseDuration(viper.GetString("payout_interval"))
	if err != nil || payoutInterval <= 0 {
		return ErrorInvalidPayoutInterval
	}

	// a payout left in progress longer than this is considered interrupted
	payoutTimeout, err = time.ParseDuration(viper.GetString("payout_timeout"))
	if err != nil || payoutTimeout <= 0 {
		return ErrorInvalidPayoutTimeout
	}

	maxRetry = viper.GetInt("max_retry")
	if maxRetry <= 0 {
		return ErrorInvalidMaxRetry
	}

	httpAddress = strings.TrimSpace(viper.GetString("http_address"))
	metricsAddress = strings.TrimSpace(viper.GetString("metrics_address"))
	pidFile = strings.TrimSpace(viper.GetString("pid_file"))

	logLevel, err = zapcore.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		return ErrorInvalidLogLevel
	}

	return nil
}

func readCurveParams() (curve.Params, error) {
	p := curve.Params{
		Type: strings.TrimSpace(strings.ToLower(viper.GetString("curve_type"))),
	}

	switch p.Type {
	case curve.TypeConstant, curve.TypeLinear, curve.TypeSquareRoot:
	default:
		return curve.Params{}, ErrorInvalidCurveType
	}

	var err error
	if p.Value, err = readDecimal("curve_value"); err != nil {
		return curve.Params{}, err
	}
	if p.Slope, err = readDecimal("curve_slope"); err != nil {
		return curve.Params{}, err
	}
	if p.Power, err = readDecimal("curve_power"); err != nil {
		return curve.Params{}, err
	}

	scale := viper.GetInt("curve_scale")
	if scale < 0 || scale > curve.MaxPlaces {
		return curve.Params{}, fmt.Errorf("%w: curve_scale %d", ErrorInvalidCurveParameter, scale)
	}
	p.Scale = uint32(scale)
	return p, nil
}

// readDecimal keeps the exact textual value, so "0.35" never passes through a float.
func readDecimal(key string) (decimal.Decimal, error) {
	str := strings.TrimSpace(viper.GetString(key))
	if str == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(str)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v %q", ErrorInvalidCurveParameter, key, str)
	}
	return d, nil
}

//-------------------------------------------------------------------
// Processed values

func GetCurve() *curve.Curve {
	return bondingCurve
}

func GetCurveParams() curve.Params {
	return curveParams
}

func GetDecimalPlaces() curve.DecimalPlaces {
	return decimalPlaces
}

func GetDonorMatchSplit() model.Split {
	return donorMatchSplit
}

func GetLogLevel() zapcore.Level {
	return logLevel
}

//-------------------------------------------------------------------
// Normal configuration values

func GetDbUri() string {
	return dbUri
}

func GetReserveDenom() string {
	return reserveDenom
}

func GetUnbondingPeriod() time.Duration {
	return unbondingPeriod
}

func GetSettleInterval() time.Duration {
	return settleInterval
}

func GetPayoutInterval() time.Duration {
	return payoutInterval
}

func GetPayoutTimeout() time.Duration {
	return payoutTimeout
}

func GetMaxRetry() int {
	return maxRetry
}

func GetHttpAddress() string {
	return httpAddress
}

func GetMetricsAddress() string {
	return metricsAddress
}

func GetPidFile() string {
	return pidFile
}
