package types

// Link 页面上的一个可见链接
type Link struct {
	Href string
	Text string
}

// HtmlContent 渲染后页面的 HTML 快照
type HtmlContent struct {
	Url  string
	Html string
}
