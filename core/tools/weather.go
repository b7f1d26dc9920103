package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type weatherParameters struct {
	City string `json:"city" jsonschema_description:"The city name (e.g., \"New York\", \"London\", \"Mumbai\")"`
}

type weatherReport struct {
	CurrentCondition []struct {
		TempC          string `json:"temp_C"`
		TempF          string `json:"temp_F"`
		Humidity       string `json:"humidity"`
		WindspeedKmph  string `json:"windspeedKmph"`
		WindDir16Point string `json:"winddir16Point"`
		WeatherDesc    []struct {
			Value string `json:"value"`
		} `json:"weatherDesc"`
	} `json:"current_condition"`
}

func (t *Toolbox) weather(ctx context.Context, p weatherParameters) (string, error) {
	ctx, span := tracer.Start(ctx, "get weather")
	defer span.End()

	city := strings.TrimSpace(p.City)
	if city == "" {
		return "Please tell me which city you want the weather for.", nil
	}
	span.SetAttributes(attribute.String("weather.city", city))

	report, err := t.fetchWeather(ctx, city)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn("failed to fetch weather", "city", city, "error", err)
		return fmt.Sprintf("Sorry, I couldn't fetch the weather for %s. Please try again.", city), nil
	}
	if len(report.CurrentCondition) == 0 {
		return fmt.Sprintf("Could not get weather for %s. Please check the city name.", city), nil
	}

	current := report.CurrentCondition[0]
	description := "Unknown"
	if len(current.WeatherDesc) > 0 && current.WeatherDesc[0].Value != "" {
		description = current.WeatherDesc[0].Value
	}
	return fmt.Sprintf("Weather in %s: %s, Temperature: %s°C (%s°F), Humidity: %s%%, Wind: %s km/h %s",
		city, description, current.TempC, current.TempF, current.Humidity, current.WindspeedKmph, current.WindDir16Point), nil
}

func (t *Toolbox) fetchWeather(ctx context.Context, city string) (*weatherReport, error) {
	endpoint := strings.TrimRight(t.weatherURL, "/") + "/" + url.PathEscape(city) + "?format=j1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("User-Agent", "curl")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	var report weatherReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("error unmarshalling JSON: %w", err)
	}
	return &report, nil
}
