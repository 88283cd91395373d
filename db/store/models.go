package store

type Game struct {
	ID            int64
	Date          string
	PlayerName    string
	Width         int64
	Height        int64
	MinesCount    int64
	MinePositions string
	LayoutDigest  string
	Outcome       string
}

type Move struct {
	ID         int64
	GameID     int64
	MoveNumber int64
	X          int64
	Y          int64
	Result     string
}
