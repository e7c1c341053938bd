package services

import (
	"sort"
	"strings"
	"sync"
	"time"

	"supermart-analytics/internal/logger"

	"github.com/gin-gonic/gin"
)

// maxLogEntries bounds the in-memory request log.
const maxLogEntries = 10000

// LogEntry は単一のリクエストログを表します。
type LogEntry struct {
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	Method       string        `json:"method"`
	StatusCode   int           `json:"status_code"`
	ResponseTime time.Duration `json:"response_time"`
}

// MonitoringService はAPIのリクエストを記録し集計します。
type MonitoringService struct {
	// logs is a ring once full; next is the slot of the oldest entry.
	logs []LogEntry
	next int
	mu   sync.RWMutex
	log  *logger.Logger
	now  func() time.Time
}

// NewMonitoringService は新しいMonitoringServiceを生成します。
func NewMonitoringService(log *logger.Logger) *MonitoringService {
	return &MonitoringService{
		logs: make([]LogEntry, 0, 64),
		log:  log.With("service", "MonitoringService"),
		now:  time.Now,
	}
}

// LogRequest はリクエストを記録します。古いエントリから破棄されます。
func (s *MonitoringService) LogRequest(entry LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.logs) < maxLogEntries {
		s.logs = append(s.logs, entry)
		return
	}
	s.logs[s.next] = entry
	s.next = (s.next + 1) % maxLogEntries
}

// LoggingMiddleware はリクエストをアクセスログに出力し、集計用に記録します。
func (s *MonitoringService) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := s.now()
		c.Next()

		path := c.Request.URL.Path
		entry := LogEntry{
			Timestamp:    start,
			Path:         path,
			Method:       c.Request.Method,
			StatusCode:   c.Writer.Status(),
			ResponseTime: time.Since(start),
		}
		s.log.Info("request", "method", entry.Method, "path", path, "status", entry.StatusCode,
			"latency", entry.ResponseTime, "client_ip", c.ClientIP())

		// 監視系とヘルスチェックは集計から除外
		if strings.HasPrefix(path, "/api/v1/monitoring") || path == "/health" {
			return
		}
		s.LogRequest(entry)
	}
}

// DashboardData はダッシュボードに表示するための集計済みデータです。
type DashboardData struct {
	PeriodHours      int                      `json:"periodHours"`
	TotalRequests    int                      `json:"totalRequests"`
	RequestsOverTime []map[string]interface{} `json:"requestsOverTime"`
	Endpoints        map[string]int           `json:"endpoints"`
	StatusCodes      []map[string]interface{} `json:"statusCodes"`
	AvgResponseTimes []map[string]interface{} `json:"avgResponseTimes"`
	RecentErrors     []LogEntry               `json:"recentErrors"`
}

// GetDashboardData は指定された期間のログを集計して返します（時刻はUTC）。
func (s *MonitoringService) GetDashboardData(periodHours int) DashboardData {
	if periodHours <= 0 {
		periodHours = 24
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now().UTC()
	since := now.Add(-time.Duration(periodHours) * time.Hour)

	filtered := make([]LogEntry, 0)
	for _, part := range [][]LogEntry{s.logs[s.next:], s.logs[:s.next]} {
		for _, e := range part {
			if e.Timestamp.After(since) {
				filtered = append(filtered, e)
			}
		}
	}

	// 時間ごとのバケット（過去から現在へ）
	requestsOverTime := make([]map[string]interface{}, periodHours)
	bucketIndex := make(map[string]int, periodHours)
	for i := 0; i < periodHours; i++ {
		t := now.Add(-time.Duration(periodHours-1-i) * time.Hour).Truncate(time.Hour)
		bucketIndex[t.Format(time.RFC3339)] = i
		requestsOverTime[i] = map[string]interface{}{"time": t.Format("01-02 15:00"), "requests": 0}
	}
	for _, e := range filtered {
		key := e.Timestamp.UTC().Truncate(time.Hour).Format(time.RFC3339)
		if i, ok := bucketIndex[key]; ok {
			requestsOverTime[i]["requests"] = requestsOverTime[i]["requests"].(int) + 1
		}
	}

	endpoints := make(map[string]int)
	for _, e := range filtered {
		endpoints[e.Path]++
	}

	statusNames := []string{"2xx Success", "4xx Client Error", "5xx Server Error"}
	statusCounts := make(map[string]int, len(statusNames))
	for _, e := range filtered {
		switch {
		case e.StatusCode >= 200 && e.StatusCode < 300:
			statusCounts[statusNames[0]]++
		case e.StatusCode >= 400 && e.StatusCode < 500:
			statusCounts[statusNames[1]]++
		case e.StatusCode >= 500:
			statusCounts[statusNames[2]]++
		}
	}
	statusCodes := make([]map[string]interface{}, 0, len(statusNames))
	for _, name := range statusNames {
		statusCodes = append(statusCodes, map[string]interface{}{"name": name, "value": statusCounts[name]})
	}

	sumTime := make(map[string]time.Duration)
	count := make(map[string]int)
	for _, e := range filtered {
		sumTime[e.Path] += e.ResponseTime
		count[e.Path]++
	}
	paths := make([]string, 0, len(sumTime))
	for p := range sumTime {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	avgResponseTimes := make([]map[string]interface{}, 0, len(paths))
	for _, p := range paths {
		avg := sumTime[p].Milliseconds() / int64(count[p])
		avgResponseTimes = append(avgResponseTimes, map[string]interface{}{"endpoint": p, "responseTime": avg})
	}

	// 直近の5xxエラー（最大10件、新しい順）
	recentErrors := make([]LogEntry, 0)
	for i := len(filtered) - 1; i >= 0 && len(recentErrors) < 10; i-- {
		if filtered[i].StatusCode >= 500 {
			recentErrors = append(recentErrors, filtered[i])
		}
	}

	return DashboardData{
		PeriodHours:      periodHours,
		TotalRequests:    len(filtered),
		RequestsOverTime: requestsOverTime,
		Endpoints:        endpoints,
		StatusCodes:      statusCodes,
		AvgResponseTimes: avgResponseTimes,
		RecentErrors:     recentErrors,
	}
}
