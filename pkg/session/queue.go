package session

// outcome — результат обновления токенов для ожидающего запроса.
type outcome struct {
	accessToken string
	err         error
}

// waiter — запрос, приостановленный до завершения обновления.
// Канал буферизован на одно значение: если вызывающий уже ушёл
// (контекст отменён), завершение просто остаётся непрочитанным.
type waiter struct {
	done chan outcome
}

// waitQueue — FIFO ожидающих запросов. Доступ только под Client.mu.
type waitQueue struct {
	items []*waiter
}

func (q *waitQueue) push() *waiter {
	w := &waiter{done: make(chan outcome, 1)}
	q.items = append(q.items, w)
	return w
}

func (q *waitQueue) len() int { return len(q.items) }

// take забирает всех ожидающих в порядке постановки и опустошает очередь.
func (q *waitQueue) take() []*waiter {
	items := q.items
	q.items = nil
	return items
}

// settle завершает ожидающих строго в порядке FIFO.
func settle(ws []*waiter, out outcome) {
	for _, w := range ws {
		w.done <- out
	}
}
