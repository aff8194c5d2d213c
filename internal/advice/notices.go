package advice

import "math"

// Level tells the view how to style a notice.
type Level string

const (
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
)

type Notice struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Notices returns the temperature notice followed by the UV notice.
func Notices(temperature, uv float64) []Notice {
	return []Notice{temperatureNotice(temperature), uvNotice(uv)}
}

func temperatureNotice(t float64) Notice {
	switch {
	case math.IsNaN(t):
		return Notice{Level: LevelInfo, Message: "Temperature data is unavailable right now."}
	case t > 30:
		return Notice{Level: LevelWarning, Message: "It is hot. Drink plenty of water and rest in the shade."}
	case t < 10:
		return Notice{Level: LevelInfo, Message: "It is cold. Dress warmly and keep yourself insulated."}
	default:
		return Notice{Level: LevelSuccess, Message: "The temperature is comfortable. Good weather for light exercise."}
	}
}

func uvNotice(uv float64) Notice {
	switch {
	case math.IsNaN(uv):
		return Notice{Level: LevelInfo, Message: "UV data is unavailable right now."}
	case uv > 6:
		return Notice{Level: LevelWarning, Message: "The UV index is high. Wear sunscreen and a hat."}
	default:
		return Notice{Level: LevelSuccess, Message: "The UV index is moderate."}
	}
}
