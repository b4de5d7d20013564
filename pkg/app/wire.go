package app

// Components 收集 Wire 注入的服务与资源
type Components struct {
	Servers []Server
	Closers []Closer
}

// InitApp 将注入的组件绑定到 BaseApp
func InitApp(a *BaseApp, comps Components) *BaseApp {
	a.AppendServer(comps.Servers...)
	a.AppendCloser(comps.Closers...)
	return a
}

// CloserFunc 将普通函数适配为 Closer
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }
