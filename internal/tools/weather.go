package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/soyeahso/agentloop/internal/agent"
	"github.com/soyeahso/agentloop/internal/schema"
	"github.com/soyeahso/agentloop/internal/ui"
)

// DefaultWeatherBaseURL is the NOAA weather API.
const DefaultWeatherBaseURL = "https://api.weather.gov"

const maxForecastPeriods = 7

type weatherInput struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Hourly    bool    `json:"hourly"`
}

type pointsResponse struct {
	Properties struct {
		Forecast         string `json:"forecast"`
		ForecastHourly   string `json:"forecastHourly"`
		RelativeLocation struct {
			Properties struct {
				City  string `json:"city"`
				State string `json:"state"`
			} `json:"properties"`
		} `json:"relativeLocation"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Updated string           `json:"updated"`
		Periods []forecastPeriod `json:"periods"`
	} `json:"properties"`
}

type forecastPeriod struct {
	Name             string `json:"name"`
	StartTime        string `json:"startTime"`
	Temperature      int    `json:"temperature"`
	TemperatureUnit  string `json:"temperatureUnit"`
	WindSpeed        string `json:"windSpeed"`
	WindDirection    string `json:"windDirection"`
	ShortForecast    string `json:"shortForecast"`
	DetailedForecast string `json:"detailedForecast"`
}

// Weather fetches a forecast from the NOAA API (United States only).
func Weather(deps Deps) (agent.Tool, error) {
	base := strings.TrimRight(deps.WeatherBaseURL, "/")
	if base == "" {
		base = DefaultWeatherBaseURL
	}
	ua := deps.WeatherUserAgent
	if ua == "" {
		ua = "agentloop/1.0"
	}
	client := deps.httpClient()

	get := func(ctx context.Context, url string, out any) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		// NOAA rejects requests without a User-Agent.
		req.Header.Set("User-Agent", ua)
		req.Header.Set("Accept", "application/geo+json")
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	}

	return agent.Tool{
		Name:        "weather",
		Description: "Get the weather forecast for a location in the United States by latitude and longitude.",
		Parameters: schema.Object(
			schema.Required("latitude", schema.Number("Latitude of the location")),
			schema.Required("longitude", schema.Number("Longitude of the location")),
			schema.Optional("hourly", schema.Boolean("Return the hourly forecast instead of day/night periods")),
		),
		Execute: func(ctx context.Context, input map[string]any) (agent.ToolResult, error) {
			var in weatherInput
			if err := schema.Decode(input, &in); err != nil {
				return agent.ToolResult{}, err
			}

			var points pointsResponse
			if err := get(ctx, fmt.Sprintf("%s/points/%.4f,%.4f", base, in.Latitude, in.Longitude), &points); err != nil {
				return softFail("failed to get grid point information: %v", err), nil
			}
			forecastURL := points.Properties.Forecast
			if in.Hourly {
				forecastURL = points.Properties.ForecastHourly
			}
			if forecastURL == "" {
				return softFail("no forecast available for %.4f, %.4f", in.Latitude, in.Longitude), nil
			}

			var forecast forecastResponse
			if err := get(ctx, forecastURL, &forecast); err != nil {
				return softFail("failed to get forecast: %v", err), nil
			}

			periods := forecast.Properties.Periods
			if len(periods) > maxForecastPeriods {
				periods = periods[:maxForecastPeriods]
			}

			place := fmt.Sprintf("%.4f, %.4f", in.Latitude, in.Longitude)
			if loc := points.Properties.RelativeLocation.Properties; loc.City != "" {
				place = loc.City + ", " + loc.State
			}

			var b strings.Builder
			fmt.Fprintf(&b, "Weather forecast for %s\n", place)
			if forecast.Properties.Updated != "" {
				fmt.Fprintf(&b, "Updated: %s\n", forecast.Properties.Updated)
			}
			rows := make([][]string, len(periods))
			for i, p := range periods {
				temp := fmt.Sprintf("%d°%s", p.Temperature, p.TemperatureUnit)
				wind := strings.TrimSpace(p.WindDirection + " " + p.WindSpeed)
				fmt.Fprintf(&b, "\n%s: %s, wind %s. %s", p.Name, temp, wind, p.ShortForecast)
				name := p.Name
				if name == "" {
					name = p.StartTime
				}
				rows[i] = []string{name, temp, wind, p.ShortForecast}
			}

			return agent.ToolResult{
				NextPrompt: b.String(),
				Render: func() ui.Element {
					return ui.Table{
						Title:   "Forecast for " + place,
						Columns: []string{"Period", "Temperature", "Wind", "Forecast"},
						Rows:    rows,
					}
				},
			}, nil
		},
	}, nil
}
