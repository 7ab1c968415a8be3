package api

import "sync"

// searchLimiter tracks concurrent searches per client IP and globally.
type searchLimiter struct {
	mu       sync.Mutex
	active   map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newSearchLimiter(maxPerIP, maxTotal int) *searchLimiter {
	if maxPerIP < 1 {
		maxPerIP = 1
	}
	if maxTotal < maxPerIP {
		maxTotal = maxPerIP
	}
	return &searchLimiter{
		active:   make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire attempts to register a new search for the given IP.
// Returns false if the IP or global limit has been reached.
func (l *searchLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal {
		return false
	}
	if l.active[ip] >= l.maxPerIP {
		return false
	}

	l.active[ip]++
	l.total++
	return true
}

// release decrements the search count for the given IP.
func (l *searchLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.active[ip]--
	l.total--
	if l.active[ip] <= 0 {
		delete(l.active, ip)
	}
}

// count returns the number of active searches for the given IP.
func (l *searchLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[ip]
}
