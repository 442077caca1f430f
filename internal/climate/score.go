package climate

// OptimalThreshold is the minimum score of an optimal growing day.
const OptimalThreshold = 70.0

const factorWeight = 0.25

// Score rates one day of climate for grape growing on a 0-100 scale.
// Temperature, humidity, rainfall and cloud cover each contribute 25%.
// Cloud cover is not clamped; inputs are expected to be validated upstream.
func Score(r Reading) float64 {
	return factorWeight * (temperatureScore(r.MaxTemperature) +
		humidityScore(r.MeanHumidity) +
		rainScore(r.Rain) +
		cloudScore(r.CloudCover))
}

// IsOptimal reports whether the reading scores at least OptimalThreshold.
func IsOptimal(r Reading) bool {
	return Score(r) >= OptimalThreshold
}

func temperatureScore(maxTemp float64) float64 {
	switch {
	case maxTemp >= 25 && maxTemp <= 32:
		return 100
	case maxTemp >= 20 && maxTemp < 25:
		return 80
	case maxTemp > 32 && maxTemp <= 35:
		return 70
	default:
		return 40
	}
}

// humidityScore bands overlap; the first matching band wins.
func humidityScore(h float64) float64 {
	switch {
	case h >= 40 && h <= 60:
		return 100
	case (h >= 30 && h < 40) || (h > 60 && h <= 70):
		return 80
	case (h >= 20 && h < 40) || (h > 60 && h <= 80):
		return 60
	default:
		return 50
	}
}

func rainScore(mm float64) float64 {
	switch {
	case mm > 0 && mm <= 5:
		return 100
	case mm > 5 && mm <= 15:
		return 80
	case mm == 0:
		return 60
	default:
		return 40
	}
}

func cloudScore(cover float64) float64 {
	return 100 - cover
}
