// 版权所有 2024 Liminal Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package transcript 把当前显示的对话导出为一份独立的 HTML 文档。

每次对话变更后调度器调用 Writer.Render，文件整体重写：先写入同目录的临时文件，
再原子替换目标文件，读者不会看到写了一半的文档。

渲染规则：

  - 分支标记与空消息跳过
  - 代码围栏渲染为 <pre><code>
  - 代码之外以 '>' 开头的行渲染为 greentext 段落
  - 图片优先取消息内的 base64 部分，否则取 generated_image_path
*/
package transcript
