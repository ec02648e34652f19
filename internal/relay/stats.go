package relay

import "time"

// ServiceName identifies this service in the health report.
const ServiceName = "VLM WebSocket Service"

// ServiceStats is the point-in-time view served by /stats. Derived on demand
// from the registry, the processed counter, and the reader; nothing here is
// stored.
type ServiceStats struct {
	ConnectedClients       int   `json:"connected_clients"`
	TotalMessagesProcessed int64 `json:"total_messages_processed"`
	UptimeSeconds          int64 `json:"uptime_seconds"`
	RedisConnected         bool  `json:"redis_connected"`
}

// HealthReport is the object served by /health.
type HealthReport struct {
	Status                 string `json:"status"`
	Service                string `json:"service"`
	RedisStatus            string `json:"redis_status"`
	ConnectedClients       int    `json:"connected_clients"`
	TotalMessagesProcessed int64  `json:"total_messages_processed"`
	UptimeSeconds          int64  `json:"uptime_seconds"`
	Timestamp              int64  `json:"timestamp"`
}

// Stats computes the current service statistics.
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		ConnectedClients:       s.registry.Count(),
		TotalMessagesProcessed: s.processed.Load(),
		UptimeSeconds:          int64(time.Since(s.startedAt).Seconds()),
		RedisConnected:         s.reader.Connected(),
	}
}

// Health computes the current health report.
func (s *Service) Health() HealthReport {
	stats := s.Stats()
	redisStatus := "disconnected"
	if stats.RedisConnected {
		redisStatus = "connected"
	}
	return HealthReport{
		Status:                 "healthy",
		Service:                ServiceName,
		RedisStatus:            redisStatus,
		ConnectedClients:       stats.ConnectedClients,
		TotalMessagesProcessed: stats.TotalMessagesProcessed,
		UptimeSeconds:          stats.UptimeSeconds,
		Timestamp:              time.Now().UnixMilli(),
	}
}
