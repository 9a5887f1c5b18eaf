package web

import (
	"html/template"
	"time"

	"github.com/amonks/taskdash/todo"
)

func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"formatTime": formatTime,
		"formatDue":  formatDue,
		"isDone":     func(status todo.Status) bool { return status == todo.StatusCompleted },
		"kilobytes":  func(size int64) int64 { return (size + 1023) / 1024 },
	}
	tmpl := template.Must(template.New("styles").Funcs(funcs).Parse(stylesTemplate))
	template.Must(tmpl.New("login").Parse(loginTemplate))
	template.Must(tmpl.New("signup").Parse(signupTemplate))
	template.Must(tmpl.New("verify").Parse(verifyTemplate))
	template.Must(tmpl.New("page").Parse(pageTemplate))
	return tmpl
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.Format("2006-01-02 15:04")
}

func formatDue(value *todo.Date) string {
	if value == nil {
		return "-"
	}
	return value.String()
}

const stylesTemplate = `<style>
    :root {
      color-scheme: light;
    }
    body {
      margin: 0;
      font-family: "Charter", "Georgia", serif;
      color: #2b2520;
      background: radial-gradient(circle at top left, #f4efe3 0%, #fcfaf6 55%, #f6f2e8 100%);
    }
    header {
      display: flex;
      justify-content: space-between;
      align-items: center;
      padding: 16px 24px;
      border-bottom: 1px solid #d7cdbd;
      background: rgba(255, 255, 255, 0.72);
    }
    header h1 {
      margin: 0;
      font-size: 20px;
      letter-spacing: 0.02em;
    }
    main {
      display: flex;
      gap: 18px;
      padding: 18px 24px 28px;
    }
    .pane {
      background: #ffffff;
      border: 1px solid #d7cdbd;
      border-radius: 14px;
      box-shadow: 0 8px 24px rgba(60, 45, 30, 0.08);
      padding: 16px 20px;
    }
    .list-pane {
      flex: 3;
    }
    .detail-pane {
      flex: 2;
    }
    .login-pane {
      max-width: 380px;
      margin: 64px auto;
    }
    .widgets {
      display: grid;
      grid-template-columns: repeat(5, 1fr);
      gap: 10px;
      margin-bottom: 16px;
    }
    .widget {
      border: 1px solid #e0d6c6;
      border-radius: 10px;
      padding: 10px;
      background: #fcf8f1;
    }
    .widget strong {
      display: block;
      font-size: 22px;
    }
    .item-list {
      list-style: none;
      padding: 0;
      margin: 0;
      display: flex;
      flex-direction: column;
      gap: 8px;
    }
    .list-item {
      display: flex;
      align-items: center;
      gap: 10px;
      padding: 10px 12px;
      border-radius: 10px;
      border: 1px solid #eee5d7;
    }
    .list-item.done .item-title {
      text-decoration: line-through;
      color: #72685f;
    }
    .list-item.overdue {
      border-color: #d9a7a2;
    }
    .item-body {
      flex: 1;
    }
    .item-title {
      font-weight: 600;
      display: block;
      color: inherit;
    }
    .item-meta {
      color: #72685f;
      font-size: 12px;
    }
    .field {
      display: flex;
      flex-direction: column;
      gap: 6px;
      margin-bottom: 12px;
    }
    input[type="text"],
    input[type="email"],
    input[type="password"],
    input[type="date"],
    select,
    textarea {
      width: 100%;
      padding: 8px 10px;
      border-radius: 8px;
      border: 1px solid #cbbfae;
      font-family: inherit;
      font-size: 14px;
      background: #fffdf9;
      box-sizing: border-box;
    }
    textarea {
      min-height: 90px;
      resize: vertical;
    }
    .filters {
      display: flex;
      gap: 10px;
      margin-bottom: 12px;
    }
    .actions {
      display: flex;
      flex-wrap: wrap;
      gap: 10px;
      margin-top: 12px;
    }
    button {
      padding: 6px 12px;
      border-radius: 8px;
      border: 1px solid #bfb3a2;
      background: #efe6d7;
      font-family: inherit;
      cursor: pointer;
    }
    button.danger {
      background: #f4d7d2;
      border-color: #d7a7a1;
    }
    .error {
      padding: 10px 12px;
      border-radius: 8px;
      background: #f7d9d6;
      border: 1px solid #d9a7a2;
      margin-bottom: 12px;
      color: #5b1d17;
    }
    .notice {
      padding: 10px 12px;
      border-radius: 8px;
      background: #dcebd8;
      border: 1px solid #a9c9a1;
      margin-bottom: 12px;
      color: #1f4a17;
    }
    .muted {
      color: #72685f;
    }
    @media (max-width: 900px) {
      main {
        flex-direction: column;
      }
      .widgets {
        grid-template-columns: repeat(2, 1fr);
      }
    }
  </style>`

const loginTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Sign in</title>
  {{template "styles"}}
</head>
<body>
  <section class="pane login-pane">
    <h2>Sign in</h2>
    {{if .Notice}}<div class="notice">{{.Notice}}</div>{{end}}
    {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
    <form method="post" action="/login">
      <div class="field">
        <label for="email">Email</label>
        <input id="email" type="email" name="email" value="{{.Email}}" required>
      </div>
      <div class="field">
        <label for="password">Password</label>
        <input id="password" type="password" name="password" required>
      </div>
      <label><input type="checkbox" name="remember" value="1" {{if .Remember}}checked{{end}}> Remember me</label>
      <div class="actions">
        <button type="submit">Sign in</button>
      </div>
    </form>
    <p class="muted">No account yet? <a href="/signup">Sign up</a></p>
  </section>
</body>
</html>
`

const signupTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Sign up</title>
  {{template "styles"}}
</head>
<body>
  <section class="pane login-pane">
    <h2>Create an account</h2>
    {{range .Errors}}<div class="error">{{.}}</div>{{end}}
    <form method="post" action="/signup">
      <div class="field">
        <label for="first_name">First name</label>
        <input id="first_name" type="text" name="first_name" value="{{.FirstName}}" required>
      </div>
      <div class="field">
        <label for="last_name">Last name</label>
        <input id="last_name" type="text" name="last_name" value="{{.LastName}}" required>
      </div>
      <div class="field">
        <label for="company">Company</label>
        <input id="company" type="text" name="company" value="{{.Company}}">
      </div>
      <div class="field">
        <label for="email">Email</label>
        <input id="email" type="email" name="email" value="{{.Email}}" required>
      </div>
      <div class="field">
        <label for="password">Password</label>
        <input id="password" type="password" name="password" required>
      </div>
      <div class="field">
        <label for="password_confirmation">Confirm password</label>
        <input id="password_confirmation" type="password" name="password_confirmation" required>
      </div>
      <div class="actions">
        <button type="submit">Sign up</button>
      </div>
    </form>
    <p class="muted">Already registered? <a href="/login">Sign in</a></p>
  </section>
</body>
</html>
`

const verifyTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Verify email</title>
  {{template "styles"}}
</head>
<body>
  <section class="pane login-pane">
    <h2>Verify your email</h2>
    {{if .Notice}}<div class="notice">{{.Notice}}</div>{{end}}
    {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
    <p>Enter the 6-digit code sent to {{.Email}}.</p>
    <form method="post" action="/verify-otp">
      <input type="hidden" name="email" value="{{.Email}}">
      <div class="field">
        <label for="otp_code">Code</label>
        <input id="otp_code" type="text" name="otp_code" inputmode="numeric" maxlength="6" autocomplete="one-time-code" required>
      </div>
      <div class="actions">
        <button type="submit">Verify</button>
      </div>
    </form>
    <form method="post" action="/verify-otp">
      <input type="hidden" name="email" value="{{.Email}}">
      <input type="hidden" name="action" value="resend">
      {{if .CanResend}}
        <button type="submit">Resend code</button>
      {{else}}
        <button type="submit" disabled>Resend code in {{.Remaining}}</button>
      {{end}}
    </form>
  </section>
</body>
</html>
`

const pageTemplate = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Dashboard</title>
  {{template "styles"}}
</head>
<body>
  <header>
    <h1>Tasks</h1>
    <form method="post" action="/logout"><button type="submit">Sign out</button></form>
  </header>
  <main>
    <section class="pane list-pane">
      {{if .Error}}<div class="error">{{.Error}}</div>{{end}}
      <div class="widgets">
        <div class="widget"><strong>{{.Analytics.Total}}</strong>Total</div>
        <div class="widget"><strong>{{.Analytics.Completed}}</strong>Completed</div>
        <div class="widget"><strong>{{.Analytics.Pending}}</strong>Pending</div>
        <div class="widget"><strong>{{.Analytics.CompletionRate}}%</strong>Completion</div>
        <div class="widget"><strong>{{.Analytics.Overdue}}</strong>Overdue</div>
      </div>
      <form class="filters" method="get" action="/dashboard">
        <input type="text" name="search" value="{{.Search}}" placeholder="Search">
        <select name="status">
          {{range .FilterOptions}}
            <option value="{{.Value}}" {{if eq .Value $.Status}}selected{{end}}>{{.Label}}</option>
          {{end}}
        </select>
        <button type="submit">Filter</button>
      </form>
      <form id="bulk" method="post" action="/todos/bulk-delete"></form>
      <ul class="item-list">
        {{range .Todos}}
          <li class="list-item {{if isDone .Status}}done{{end}} {{if .IsOverdue}}overdue{{end}}">
            <input type="checkbox" form="bulk" name="ids" value="{{.ID}}">
            <div class="item-body">
              <a class="item-title" href="/dashboard?edit={{.ID}}">{{.Title}}</a>
              <span class="item-meta">{{.Priority}} · due {{formatDue .DueDate}}{{if .IsDueToday}} (today){{end}}{{if .PDFURL}} · <a href="/todos/attachment/download?id={{.ID}}">PDF</a>{{end}}</span>
            </div>
            <form method="post" action="/todos/status?id={{.ID}}">
              {{if isDone .Status}}
                <input type="hidden" name="status" value="pending">
                <button type="submit">Reopen</button>
              {{else}}
                <input type="hidden" name="status" value="completed">
                <button type="submit">Complete</button>
              {{end}}
            </form>
            <form method="post" action="/todos/delete?id={{.ID}}">
              <button class="danger" type="submit">Delete</button>
            </form>
          </li>
        {{else}}
          <li class="muted">No todos found.</li>
        {{end}}
      </ul>
      {{if .Todos}}
        <div class="actions">
          <button class="danger" type="submit" form="bulk">Delete selected</button>
        </div>
      {{end}}
    </section>
    <section class="pane detail-pane">
      {{if .Editing}}
        <h2>Edit todo</h2>
        <form method="post" action="/todos/update?id={{.Editing.ID}}" enctype="multipart/form-data">
          <div class="field">
            <label for="edit-title">Title</label>
            <input id="edit-title" type="text" name="title" value="{{.EditForm.Title}}" required>
          </div>
          <div class="field">
            <label for="edit-description">Description</label>
            <textarea id="edit-description" name="description" required>{{.EditForm.Description}}</textarea>
          </div>
          <div class="field">
            <label for="edit-status">Status</label>
            <select id="edit-status" name="status">
              {{range .StatusOptions}}
                <option value="{{.Value}}" {{if eq .Value $.EditForm.Status}}selected{{end}}>{{.Label}}</option>
              {{end}}
            </select>
          </div>
          <div class="field">
            <label for="edit-priority">Priority</label>
            <select id="edit-priority" name="priority">
              {{range .PriorityOptions}}
                <option value="{{.Value}}" {{if eq .Value $.EditForm.Priority}}selected{{end}}>{{.Label}}</option>
              {{end}}
            </select>
          </div>
          <div class="field">
            <label for="edit-due">Due date</label>
            <input id="edit-due" type="date" name="due_date" value="{{.EditForm.DueDate}}">
          </div>
          <div class="field">
            <label for="edit-pdf">Replace PDF</label>
            <input id="edit-pdf" type="file" name="pdf" accept="application/pdf">
          </div>
          <div class="actions">
            <button type="submit">Save changes</button>
            <a href="/dashboard">Close</a>
          </div>
        </form>
        <h3>Attachments</h3>
        <ul class="item-list">
          {{range .Editing.Attachments}}
            <li class="list-item">
              <div class="item-body">
                <a class="item-title" href="/todos/attachment/download?id={{.TodoID}}&name={{.OriginalName}}">{{.OriginalName}}</a>
                <span class="item-meta">{{kilobytes .SizeBytes}} KB · {{formatTime .CreatedAt}}</span>
              </div>
              <form method="post" action="/todos/attachment/delete?id={{.TodoID}}&attachment={{.ID}}">
                <button class="danger" type="submit">Remove</button>
              </form>
            </li>
          {{else}}
            <li class="muted">No attachments.</li>
          {{end}}
        </ul>
      {{else}}
        <h2>New todo</h2>
        <form method="post" action="/todos/create" enctype="multipart/form-data">
          <div class="field">
            <label for="todo-title">Title</label>
            <input id="todo-title" type="text" name="title" value="{{.Form.Title}}" required>
          </div>
          <div class="field">
            <label for="todo-description">Description</label>
            <textarea id="todo-description" name="description" required>{{.Form.Description}}</textarea>
          </div>
          <div class="field">
            <label for="todo-priority">Priority</label>
            <select id="todo-priority" name="priority">
              {{range .PriorityOptions}}
                <option value="{{.Value}}" {{if eq .Value $.Form.Priority}}selected{{end}}>{{.Label}}</option>
              {{end}}
            </select>
          </div>
          <div class="field">
            <label for="todo-due">Due date</label>
            <input id="todo-due" type="date" name="due_date" value="{{.Form.DueDate}}">
          </div>
          <div class="field">
            <label for="todo-pdf">PDF (max 20MB)</label>
            <input id="todo-pdf" type="file" name="pdf" accept="application/pdf">
          </div>
          <div class="actions">
            <button type="submit">Create todo</button>
          </div>
        </form>
      {{end}}
    </section>
  </main>
</body>
</html>
`
