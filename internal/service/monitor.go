package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，统计支付链路的错误与吞吐
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	ProviderErrors int64
	DBErrors       int64
	MQErrors       int64

	// 支付统计
	CaptureRequests   int64
	CaptureSuccess    int64
	DuplicateCaptures int64 // 幂等短路的重复捕获请求
	OrphanOrders      int64 // 找不到本地订单的服务商订单

	// worker 统计
	WorkerProcessed int64
	WorkerFailed    int64

	// 时间统计
	LastProviderError time.Time
	LastDBError       time.Time
	LastCaptureTime   time.Time
	LastWorkerTime    time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordProviderError 记录服务商调用失败
func (m *Monitor) RecordProviderError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProviderErrors++
	m.LastProviderError = time.Now()
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
}

// RecordCaptureRequest 记录捕获请求
func (m *Monitor) RecordCaptureRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CaptureRequests++
	m.LastCaptureTime = time.Now()
}

// RecordCaptureSuccess 记录捕获成功
func (m *Monitor) RecordCaptureSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CaptureSuccess++
}

// RecordDuplicateCapture 记录被幂等守卫短路的重复捕获
func (m *Monitor) RecordDuplicateCapture() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicateCaptures++
}

// RecordOrphanOrder 记录孤儿服务商订单
func (m *Monitor) RecordOrphanOrder() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrphanOrders++
}

// RecordWorkerProcessed 记录 worker 处理成功
func (m *Monitor) RecordWorkerProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerProcessed++
	m.LastWorkerTime = time.Now()
}

// RecordWorkerFailed 记录 worker 处理失败
func (m *Monitor) RecordWorkerFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerFailed++
}

// Snapshot 导出当前计数，供管理端接口展示
func (m *Monitor) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"provider_errors":    m.ProviderErrors,
		"db_errors":          m.DBErrors,
		"mq_errors":          m.MQErrors,
		"capture_requests":   m.CaptureRequests,
		"capture_success":    m.CaptureSuccess,
		"duplicate_captures": m.DuplicateCaptures,
		"orphan_orders":      m.OrphanOrders,
		"worker_processed":   m.WorkerProcessed,
		"worker_failed":      m.WorkerFailed,
	}
}
