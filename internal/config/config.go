package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	report "home-energy/internal/report/domain"
)

// AreaOptions defines one metered area in the options file.
type AreaOptions struct {
	Key                       string   `yaml:"key"`
	Name                      string   `yaml:"name"`
	Sensors                   []string `yaml:"sensors"`
	NeedsCleaning             bool     `yaml:"needs_cleaning"`
	GridSubscriptionShareIncl float64  `yaml:"grid_subscription_share_incl_vat"`
}

// SensorOptions names the household-wide sensors.
type SensorOptions struct {
	ElectricityPrice string `yaml:"electricity_price"`
	TotalMeter       string `yaml:"total_meter"`
}

// RateOptions holds tariff rates. The grid fields are pointers so a
// missing value stays distinguishable from zero.
type RateOptions struct {
	SupplierSubscriptionExVAT float64  `yaml:"supplier_subscription_ex_vat"`
	SupplierMarkupPerKWhExVAT float64  `yaml:"supplier_markup_per_kwh_ex_vat"`
	GridTransferPerKWhExVAT   *float64 `yaml:"grid_transfer_per_kwh_ex_vat"`
	GridEnergyTaxPerKWhExVAT  *float64 `yaml:"grid_energy_tax_per_kwh_ex_vat"`
	GridSubscriptionExVAT     *float64 `yaml:"grid_subscription_ex_vat"`
	VATRate                   float64  `yaml:"vat_rate"`
}

// InfluxOptions configures the telemetry store connection.
type InfluxOptions struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Options is the full options file.
type Options struct {
	Areas    []AreaOptions `yaml:"areas"`
	Sensors  SensorOptions `yaml:"sensors"`
	Rates    RateOptions   `yaml:"rates"`
	Influx   InfluxOptions `yaml:"influx"`
	Timezone string        `yaml:"timezone"`
}

// Load reads options from a yaml file when path is non-empty and
// overlays environment variables. Rates carry supplier defaults but
// grid rates stay unset until configured.
func Load(path string) (Options, error) {
	opts := Options{
		Areas: []AreaOptions{
			{Key: "gardshus", Name: "Gårdshus", Sensors: []string{"sensor.gardshus"}, NeedsCleaning: true, GridSubscriptionShareIncl: 165.00},
			{Key: "salong", Name: "Salong", Sensors: []string{"sensor.salong"}},
		},
		Sensors: SensorOptions{
			ElectricityPrice: "sensor.electricity_price",
			TotalMeter:       "sensor.energy_consumption",
		},
		Rates: RateOptions{
			SupplierSubscriptionExVAT: 39.20,
			SupplierMarkupPerKWhExVAT: 0.068,
			VATRate:                   0.25,
		},
		Timezone: "Europe/Stockholm",
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return opts, err
		}
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, err
		}
	}

	opts.Influx.URL = getenvDefault("INFLUX_URL", opts.Influx.URL)
	opts.Influx.Token = getenvDefault("INFLUX_TOKEN", opts.Influx.Token)
	opts.Influx.Org = getenvDefault("INFLUX_ORG", opts.Influx.Org)
	opts.Influx.Bucket = getenvDefault("INFLUX_BUCKET", opts.Influx.Bucket)
	opts.Timezone = getenvDefault("REPORT_TIMEZONE", opts.Timezone)

	if value, ok := getenvFloat("GRID_TRANSFER_PER_KWH_EX_VAT"); ok {
		opts.Rates.GridTransferPerKWhExVAT = &value
	}
	if value, ok := getenvFloat("GRID_ENERGY_TAX_PER_KWH_EX_VAT"); ok {
		opts.Rates.GridEnergyTaxPerKWhExVAT = &value
	}
	if value, ok := getenvFloat("GRID_SUBSCRIPTION_EX_VAT"); ok {
		opts.Rates.GridSubscriptionExVAT = &value
	}

	if opts.Influx.URL == "" {
		return opts, errors.New("config: influx url required")
	}
	if opts.Influx.Bucket == "" {
		return opts, errors.New("config: influx bucket required")
	}
	if opts.Sensors.TotalMeter == "" {
		return opts, errors.New("config: total meter sensor required")
	}
	return opts, nil
}

// Location resolves the configured timezone.
func (o Options) Location() (*time.Location, error) {
	return time.LoadLocation(o.Timezone)
}

// AreaDefinitions converts the options into domain definitions.
func (o Options) AreaDefinitions() []report.AreaDefinition {
	out := make([]report.AreaDefinition, 0, len(o.Areas))
	for _, area := range o.Areas {
		out = append(out, report.AreaDefinition{
			Key:           area.Key,
			Name:          area.Name,
			Sensors:       area.Sensors,
			NeedsCleaning: area.NeedsCleaning,
		})
	}
	return out
}

// CostConfig converts the options into the domain rate structure.
func (o Options) CostConfig() report.CostConfig {
	areas := make(map[string]report.AreaRates, len(o.Areas))
	for _, area := range o.Areas {
		areas[area.Key] = report.AreaRates{SubscriptionShareInclVAT: area.GridSubscriptionShareIncl}
	}
	return report.CostConfig{
		Areas: areas,
		Supplier: report.SupplierRates{
			SubscriptionExVAT: o.Rates.SupplierSubscriptionExVAT,
			MarkupPerKWhExVAT: o.Rates.SupplierMarkupPerKWhExVAT,
		},
		Grid: report.GridRates{
			TransferPerKWhExVAT:  o.Rates.GridTransferPerKWhExVAT,
			EnergyTaxPerKWhExVAT: o.Rates.GridEnergyTaxPerKWhExVAT,
			SubscriptionExVAT:    o.Rates.GridSubscriptionExVAT,
		},
		VATRate: o.Rates.VATRate,
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloat(key string) (float64, bool) {
	value := os.Getenv(key)
	if value == "" {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
