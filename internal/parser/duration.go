package parser

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Unit is a normalised duration unit.
type Unit string

const (
	Minutes Unit = "min"
	Hours   Unit = "h"
	Days    Unit = "j"
)

// Duration is a normalised workshop or section duration.
type Duration struct {
	Value int  `json:"value"`
	Unit  Unit `json:"unit"`
}

func (d Duration) String() string {
	if d.Unit == Minutes {
		return strconv.Itoa(d.Value) + " min"
	}
	return strconv.Itoa(d.Value) + string(d.Unit)
}

var unitSynonyms = map[string]Unit{
	"minutes": Minutes, "minute": Minutes, "min": Minutes, "mins": Minutes, "mn": Minutes,
	"heures": Hours, "heure": Hours, "h": Hours, "hours": Hours, "hour": Hours,
	"jours": Days, "jour": Days, "j": Days, "days": Days, "day": Days,
}

var durationPattern = regexp.MustCompile(`^(\d+)\s*([\p{L}]+)\.?$`)

// ParseDuration normalises free text such as "30 minutes", "2 heures" or
// "1 jour". It reports false for anything it does not recognise.
func ParseDuration(s string) (Duration, bool) {
	m := durationPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(s)))
	if m == nil {
		return Duration{}, false
	}
	unit, ok := unitSynonyms[m[2]]
	if !ok {
		return Duration{}, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v <= 0 {
		return Duration{}, false
	}
	return Duration{Value: v, Unit: unit}, true
}

// durationFrom accepts a string, a bare number (minutes) or an object with
// value and unit.
func durationFrom(raw any) (Duration, bool) {
	switch v := raw.(type) {
	case string:
		return ParseDuration(v)
	case json.Number:
		return minutesFrom(v.String())
	case float64:
		return minutesFrom(strconv.FormatFloat(v, 'f', -1, 64))
	case map[string]any:
		unit, _ := v["unit"].(string)
		switch n := v["value"].(type) {
		case json.Number:
			return ParseDuration(n.String() + " " + unit)
		case float64:
			return ParseDuration(strconv.FormatFloat(n, 'f', -1, 64) + " " + unit)
		case string:
			return ParseDuration(n + " " + unit)
		}
	}
	return Duration{}, false
}

func minutesFrom(num string) (Duration, bool) {
	return ParseDuration(num + " min")
}
