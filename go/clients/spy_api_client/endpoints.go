package spy_api_client

const (
	// API Endpoints
	SessionEndpoint     = "/api/spy/session"
	JoinRoomEndpoint    = "/api/spy/join"
	LeaderboardEndpoint = "/api/exam/leaderboard"
)
