package sigchan

// Chan 是一个非阻塞的信号 channel
// 用于通知"状态变了"，不传递数据；多次 Emit 在消费前会合并为一次
type Chan struct {
	c chan struct{}
}

// New 创建新的信号 channel，bufferSize 最小为 1
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{
		c: make(chan struct{}, bufferSize),
	}
}

// Emit 发送信号（非阻塞，满了就丢弃）
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// C 返回内部的 channel（用于 select）
func (c *Chan) C() <-chan struct{} {
	return c.c
}

// Drain 清空积压的信号，返回清掉的数量
func (c *Chan) Drain() int {
	n := 0
	for {
		select {
		case <-c.c:
			n++
		default:
			return n
		}
	}
}
