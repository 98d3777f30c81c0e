package domain

type Medicine struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

type Prescription struct {
	Name      string     `json:"name"`
	Medicines []Medicine `json:"medicines"`
}

type Treatment struct {
	Code         string       `json:"code"`
	Syndrome     string       `json:"syndrome"`
	Principle    string       `json:"principle"`
	Prescription Prescription `json:"prescription"`
	Usage        string       `json:"usage"`
	Recommended  bool         `json:"recommended"`
}
