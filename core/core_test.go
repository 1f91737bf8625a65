package core

import (
	"bytes"
	"encoding/csv"
	"io/fs"
	"net/mail"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	appfs "github.com/spist/campus/fs"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower bool
		want  string
	}{
		{name: "trim", s: "  Foo Bar \n", want: "Foo Bar"},
		{name: "trim & lower", s: "\tFoo@Bar.COM ", lower: true, want: "foo@bar.com"},
		{name: "empty", s: "   ", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanString(tt.s, tt.lower))
		})
	}
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "4"}, SplitCSV(" 1, 2,,4 ,"))
	assert.Empty(t, SplitCSV(""))
}

func TestRound(t *testing.T) {
	assert.Equal(t, 66.67, Round(200.0/3, 2))
	assert.Equal(t, 50.0, Round(50, 2))
}

func TestCleanOrderings(t *testing.T) {
	ords := []DBOrdering{{Field: "name", Ascending: true}, {Field: "password_hash"}, {Field: "created_at"}}
	got := CleanOrderings(ords, "name", "created_at")
	assert.Equal(t, []DBOrdering{{Field: "name", Ascending: true}, {Field: "created_at"}}, got)
	assert.Equal(t, "created_at DESC", got[1].String())
}

func TestErrors(t *testing.T) {
	err := errors.Wrap(NewNotFoundError("course"), "finding course")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "course not found", errors.Cause(err).Error())

	assert.False(t, IsNotFound(ErrForbidden))
	assert.True(t, IsShutdown(errors.Wrap(NewShutdownError("integrity"), "ctx")))

	vErr := NewFieldError("code", "already exists")
	assert.Equal(t, "already exists", vErr.Error())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, `<b>Exam</b> week`, SanitizeHTML(`<b>Exam</b> week<script>alert(1)</script>`))
	assert.Equal(t, "Exam week", StripTags(`<p>Exam <i>week</i></p>`))
}

func TestTable_Write(t *testing.T) {
	enrolled := time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)
	table := Table{Name: "Enrollments", Headers: []string{"Student ID", "Grade", "Enrolled At"}}
	table.AddRow("2024-0001", 89.5, enrolled)
	table.AddRow("2024-0002", nil, time.Time{})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, table.Write(&buf, ExportCSV))
		records, err := csv.NewReader(&buf).ReadAll()
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"Student ID", "Grade", "Enrolled At"},
			{"2024-0001", "89.50", "2024-06-03 09:30"},
			{"2024-0002", "", ""},
		}, records)
	})

	t.Run("xlsx", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, table.Write(&buf, ExportXLSX))
		f, err := excelize.OpenReader(&buf)
		require.NoError(t, err)
		defer f.Close()
		val, err := f.GetCellValue("Enrollments", "A2")
		require.NoError(t, err)
		assert.Equal(t, "2024-0001", val)
		val, err = f.GetCellValue("Enrollments", "C1")
		require.NoError(t, err)
		assert.Equal(t, "Enrolled At", val)
	})

	t.Run("invalid", func(t *testing.T) {
		assert.Equal(t, ErrInvalidFormat, table.Write(new(bytes.Buffer), "pdf"))
	})
}

func TestParseEmailTemplates(t *testing.T) {
	cache, err := parseEmailTemplates(appfs.FS)
	require.NoError(t, err)
	for _, name := range []string{"password_reset", "enrollment_status", "event_reminder", "notification"} {
		entry, ok := cache[name]
		require.True(t, ok, name)
		assert.Contains(t, entry, ".txt")
		assert.Contains(t, entry, ".gohtml")
	}
}

func TestEmbeddedBaseTemplates(t *testing.T) {
	for _, name := range []string{"_base.txt", "_base.gohtml"} {
		_, err := fs.Stat(appfs.FS, emailTemplatesDir+"/"+name)
		assert.NoError(t, err, name)
	}
}

func TestEmailMessage_Render(t *testing.T) {
	require.NoError(t, ParseEmailTemplates())

	t.Run("templated", func(t *testing.T) {
		msg := &EmailMessage{
			To:           []mail.Address{{Address: "hero@spist.edu"}},
			Subject:      "Notice",
			TemplateName: "notification",
			TemplateData: map[string]interface{}{"Name": "Hero", "Title": "Quiz graded", "Message": "Your quiz has been graded."},
		}
		require.NoError(t, msg.Render())
		assert.True(t, msg.HasContent())
		assert.Contains(t, msg.TextContent, "Your quiz has been graded.")
		assert.Contains(t, msg.HTMLContent, "Your quiz has been graded.")
	})

	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{BodyStr: "hello"}
		require.NoError(t, msg.Render())
		assert.Equal(t, "hello", msg.TextContent)
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: "lol"}
		err := msg.Render()
		require.Error(t, err)
		assert.Contains(t, err.Error(), `"lol.txt" not found`)
		assert.False(t, msg.HasContent())
	})
}
