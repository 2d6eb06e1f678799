package reports

// Los reportes son datasets enlatados: el frontend renderiza exactamente
// estos números en sus charts. No se calculan desde los registros reales.

type AdherencePoint struct {
	Name    string `json:"name"`
	Taken   int    `json:"taken"`
	Skipped int    `json:"skipped"`
}

type OverallSlice struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

var weeklyData = []AdherencePoint{
	{Name: "Mon", Taken: 3, Skipped: 1},
	{Name: "Tue", Taken: 4, Skipped: 0},
	{Name: "Wed", Taken: 2, Skipped: 2},
	{Name: "Thu", Taken: 3, Skipped: 1},
	{Name: "Fri", Taken: 4, Skipped: 0},
	{Name: "Sat", Taken: 3, Skipped: 1},
	{Name: "Sun", Taken: 2, Skipped: 2},
}

var monthlyData = []AdherencePoint{
	{Name: "Week 1", Taken: 20, Skipped: 8},
	{Name: "Week 2", Taken: 24, Skipped: 4},
	{Name: "Week 3", Taken: 18, Skipped: 10},
	{Name: "Week 4", Taken: 22, Skipped: 6},
}

var overallData = []OverallSlice{
	{Name: "Taken", Value: 84},
	{Name: "Skipped", Value: 28},
}

type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Adherence(period string) ([]AdherencePoint, bool) {
	switch period {
	case "weekly", "":
		return weeklyData, true
	case "monthly":
		return monthlyData, true
	}
	return nil, false
}

func (s *Service) Overall() []OverallSlice {
	return overallData
}
