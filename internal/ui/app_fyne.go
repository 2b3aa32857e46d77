//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"runtime"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"draftbook/internal/domain"
	"draftbook/internal/export"
	applog "draftbook/internal/log"
	"draftbook/internal/nav"
	"draftbook/internal/order"
	"draftbook/internal/session"
	"draftbook/internal/version"
)

var imageExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// Run starts the Fyne desktop shell on top of s and blocks until the window is closed.
func Run(s *session.Session, opts Options) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	fyneApp := app.NewWithID("draftbook")
	if v := ThemeVariant(opts.Theme); v != "system" {
		fyneApp.Settings().SetTheme(variantTheme{Theme: theme.DefaultTheme(), dark: v == "dark"})
	}
	w := fyneApp.NewWindow("draftbook")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1100)
	winH := prefs.IntWithFallback("window.height", 760)
	if winW < 720 {
		winW = 720
	}
	if winH < 520 {
		winH = 520
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	sh := &shell{s: s, w: w, l: l, status: widget.NewLabel("Ready"), header: widget.NewLabel("")}
	sh.header.TextStyle = fyne.TextStyle{Bold: true}
	sh.body = container.NewStack()

	start := opts.Domain
	if start == "" {
		start = domain.Kind(prefs.StringWithFallback("domain", string(domain.Novels)))
	}
	sh.tabs = widget.NewRadioGroup([]string{"Novels", "Comics"}, func(v string) {
		d := domain.Novels
		if v == "Comics" {
			d = domain.Comics
		}
		if s.View().Domain != d {
			s.SwitchDomain(d)
			prefs.SetString("domain", string(d))
		}
		sh.render()
	})
	sh.tabs.Horizontal = true
	sh.tabs.Required = true
	s.SwitchDomain(start)
	if start == domain.Comics {
		sh.tabs.SetSelected("Comics")
	} else {
		sh.tabs.SetSelected("Novels")
	}

	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) { sh.onKey(string(ev.Name)) })
	w.SetMainMenu(sh.menu())

	top := container.NewBorder(nil, widget.NewSeparator(), sh.tabs, nil, sh.header)
	w.SetContent(container.NewBorder(top, sh.status, nil, nil, sh.body))

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		w.Close()
	})

	sh.render()
	w.ShowAndRun()
	return nil
}

type shell struct {
	s      *session.Session
	w      fyne.Window
	l      *slog.Logger
	status *widget.Label
	header *widget.Label
	body   *fyne.Container
	tabs   *widget.RadioGroup
}

// render rebuilds the body for the current view. Every event handler ends with it.
func (sh *shell) render() {
	a := sh.s.View()
	sh.header.SetText(Header(a))
	var content fyne.CanvasObject = widget.NewLabel("Nothing to show")
	switch {
	case a.View == domain.ViewShelf || a.View == domain.ViewGallery:
		content = sh.collectionView(a.Domain)
	case a.Work == nil:
	case a.View == domain.ViewWorkDetails:
		content = sh.detailsView(*a.Work)
	case a.View == domain.ViewEditor && a.Item != nil:
		content = sh.editorView(*a.Work, *a.Item, a.ItemIndex)
	case a.View == domain.ViewReader:
		content = sh.readerView(a)
	}
	sh.body.Objects = []fyne.CanvasObject{content}
	sh.body.Refresh()
}

func (sh *shell) setStatus(format string, args ...any) {
	sh.status.SetText(fmt.Sprintf(format, args...))
}

func (sh *shell) onKey(name string) {
	a := sh.s.View()
	switch KeyAction(a.View, name) {
	case ActPrev:
		sh.step(a.View, order.Prev)
	case ActNext:
		sh.step(a.View, order.Next)
	case ActBack:
		sh.s.Back()
	case ActDelete:
		if a.Work != nil && a.Item != nil {
			sh.confirmDeleteItem(domain.Comics, a.Work.ID, a.Item.ID)
			return
		}
	default:
		return
	}
	sh.render()
}

func (sh *shell) step(v domain.View, dir order.Direction) {
	if v == domain.ViewReader {
		sh.s.StepPage(dir)
		return
	}
	sh.s.StepChapter(dir)
}

// Shelf and gallery

func (sh *shell) collectionView(d domain.Kind) fyne.CanvasObject {
	desc := domain.DescriptorFor(d)
	lib := sh.s.Library(d)
	rows := WorkRows(desc, lib)
	selected := -1

	list := widget.NewList(
		func() int { return len(rows) },
		func() fyne.CanvasObject {
			return container.NewVBox(widget.NewLabelWithStyle("", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}), widget.NewLabel(""))
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			box := o.(*fyne.Container)
			box.Objects[0].(*widget.Label).SetText(rows[i].Label)
			box.Objects[1].(*widget.Label).SetText(rows[i].Detail)
		},
	)
	cover := canvas.NewImageFromResource(nil)
	cover.FillMode = canvas.ImageFillContain
	cover.SetMinSize(fyne.NewSize(200, 300))
	list.OnSelected = func(id widget.ListItemID) {
		selected = int(id)
		sh.showThumb(cover, d, rows[id].ID, "", 200, 300)
	}

	open := widget.NewButtonWithIcon("Open", theme.FolderOpenIcon(), func() {
		if selected < 0 {
			return
		}
		sh.s.SelectWork(d, rows[selected].ID)
		sh.render()
	})
	newBtn := widget.NewButtonWithIcon("New "+desc.WorkNoun, theme.ContentAddIcon(), func() {
		sh.s.OpenCreateForm(d)
		sh.showWorkForm("", "")
	})
	edit := widget.NewButtonWithIcon("Edit", theme.DocumentCreateIcon(), func() {
		if selected < 0 {
			return
		}
		w := lib[selected]
		if sh.s.OpenEditForm(d, w.ID) {
			sh.showWorkForm(w.Title, w.Description)
		}
	})
	del := widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() {
		if selected < 0 {
			return
		}
		sh.s.RequestDeleteWork(d, rows[selected].ID)
		sh.confirmPending()
	})
	up := widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() {
		if selected >= 0 && sh.s.ReorderWork(d, selected, order.Prev) {
			sh.render()
		}
	})
	down := widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() {
		if selected >= 0 && sh.s.ReorderWork(d, selected, order.Next) {
			sh.render()
		}
	})

	bar := container.NewHBox(newBtn, open, edit, del, widget.NewSeparator(), up, down)
	if len(rows) == 0 {
		return container.NewBorder(bar, nil, nil, nil, widget.NewLabel(fmt.Sprintf("No %ss yet. Create one to get started.", desc.WorkNoun)))
	}
	return container.NewBorder(bar, nil, nil, cover, list)
}

// Work details and chapter editor

func (sh *shell) detailsView(w domain.Work) fyne.CanvasObject {
	desc := domain.NovelsDescriptor()
	rows := ItemRows(desc, w)
	selected := -1

	list := widget.NewList(
		func() int { return len(rows) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			o.(*widget.Label).SetText(fmt.Sprintf("%d. %s · %s", i+1, rows[i].Label, rows[i].Detail))
		},
	)
	list.OnSelected = func(id widget.ListItemID) { selected = int(id) }

	cover := canvas.NewImageFromResource(nil)
	cover.FillMode = canvas.ImageFillContain
	cover.SetMinSize(fyne.NewSize(160, 240))
	sh.showThumb(cover, domain.Novels, w.ID, "", 160, 240)

	info := widget.NewLabel(w.Description)
	info.Wrapping = fyne.TextWrapWord

	back := widget.NewButtonWithIcon("Shelf", theme.NavigateBackIcon(), func() { sh.s.Back(); sh.render() })
	write := widget.NewButtonWithIcon("Write", theme.DocumentCreateIcon(), func() {
		if selected >= 0 {
			sh.s.SelectItem(rows[selected].ID)
			sh.render()
		}
	})
	add := widget.NewButtonWithIcon("Add chapter", theme.ContentAddIcon(), func() {
		if _, ok := sh.s.AddChapter(w.ID); ok {
			sh.setStatus("Chapter added")
		}
		sh.render()
	})
	del := widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() {
		if selected >= 0 {
			sh.confirmDeleteItem(domain.Novels, w.ID, rows[selected].ID)
		}
	})
	up := widget.NewButtonWithIcon("", theme.MoveUpIcon(), func() {
		if selected >= 0 && sh.s.ReorderItem(domain.Novels, w.ID, selected, order.Prev) {
			sh.render()
		}
	})
	down := widget.NewButtonWithIcon("", theme.MoveDownIcon(), func() {
		if selected >= 0 && sh.s.ReorderItem(domain.Novels, w.ID, selected, order.Next) {
			sh.render()
		}
	})
	pdf := widget.NewButton("Export PDF…", func() { sh.exportWork(w, export.FormatPDF) })
	epub := widget.NewButton("Export EPUB…", func() { sh.exportWork(w, export.FormatEPUB) })

	bar := container.NewHBox(back, add, write, del, widget.NewSeparator(), up, down, widget.NewSeparator(), pdf, epub)
	side := container.NewVBox(cover, info)
	return container.NewBorder(bar, nil, side, nil, list)
}

func (sh *shell) editorView(w domain.Work, it domain.Item, idx int) fyne.CanvasObject {
	title := widget.NewEntry()
	title.SetText(it.Title)
	title.OnChanged = func(v string) { sh.s.RenameChapter(w.ID, it.ID, v) }

	text := widget.NewMultiLineEntry()
	text.Wrapping = fyne.TextWrapWord
	text.SetText(it.Payload)
	text.OnChanged = func(v string) {
		sh.s.UpdateChapter(w.ID, it.ID, v)
		sh.setStatus("%d characters", len([]rune(v)))
	}

	back := widget.NewButtonWithIcon(w.Title, theme.NavigateBackIcon(), func() { sh.s.Back(); sh.render() })
	prev := widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() {
		if sh.s.StepChapter(order.Prev) {
			sh.render()
		}
	})
	next := widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() {
		if sh.s.StepChapter(order.Next) {
			sh.render()
		}
	})
	prev.Disable()
	if idx > 0 {
		prev.Enable()
	}
	if idx >= len(w.Items)-1 {
		next.Disable()
	}
	pos := widget.NewLabel(fmt.Sprintf("Chapter %d of %d", idx+1, len(w.Items)))
	del := widget.NewButtonWithIcon("Delete chapter", theme.DeleteIcon(), func() {
		sh.confirmDeleteItem(domain.Novels, w.ID, it.ID)
	})

	bar := container.NewHBox(back, prev, pos, next, widget.NewSeparator(), del)
	return container.NewBorder(container.NewVBox(bar, title), nil, nil, nil, text)
}

// Comic reader

func (sh *shell) readerView(a nav.Active) fyne.CanvasObject {
	w, idx, onPage := a.Work, a.ItemIndex, a.Item != nil
	page := canvas.NewImageFromResource(nil)
	page.FillMode = canvas.ImageFillContain
	page.SetMinSize(fyne.NewSize(360, 480))
	if onPage {
		sh.showThumb(page, domain.Comics, w.ID, w.Items[idx].ID, 1200, 1600)
	}
	var center fyne.CanvasObject = page
	if len(w.Items) == 0 {
		center = widget.NewLabel("This comic has no pages yet. Upload one to start reading.")
	}

	back := widget.NewButtonWithIcon("Gallery", theme.NavigateBackIcon(), func() { sh.s.Back(); sh.render() })
	prev := widget.NewButtonWithIcon("", theme.NavigateBackIcon(), func() {
		if sh.s.StepPage(order.Prev) {
			sh.render()
		}
	})
	next := widget.NewButtonWithIcon("", theme.NavigateNextIcon(), func() {
		if sh.s.StepPage(order.Next) {
			sh.render()
		}
	})
	upload := widget.NewButtonWithIcon("Upload page…", theme.UploadIcon(), func() { sh.uploadPage() })
	left := widget.NewButton("Move left", func() {
		if sh.s.MovePage(order.Prev) {
			sh.render()
		}
	})
	right := widget.NewButton("Move right", func() {
		if sh.s.MovePage(order.Next) {
			sh.render()
		}
	})
	del := widget.NewButtonWithIcon("Delete page", theme.DeleteIcon(), func() {
		if onPage {
			sh.confirmDeleteItem(domain.Comics, w.ID, w.Items[idx].ID)
		}
	})
	cbz := widget.NewButton("Export CBZ…", func() { sh.exportWork(*w, export.FormatCBZ) })
	if !onPage {
		left.Disable()
		right.Disable()
		del.Disable()
	}

	jump := widget.NewSelect(nil, nil)
	for i := range w.Items {
		jump.Options = append(jump.Options, fmt.Sprintf("%d", i+1))
	}
	if onPage {
		jump.SetSelectedIndex(idx)
	}
	jump.OnChanged = func(string) {
		if i := jump.SelectedIndex(); i >= 0 && i != idx && sh.s.JumpToPage(i) {
			sh.render()
		}
	}

	bar := container.NewHBox(back, prev, widget.NewLabel(PageLabel(a)), next, jump, widget.NewSeparator(), upload, left, right, del, cbz)
	return container.NewBorder(bar, nil, nil, nil, center)
}

func (sh *shell) uploadPage() {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, sh.w)
			return
		}
		if rc == nil {
			return
		}
		path := rc.URI().Path()
		_ = rc.Close()
		sh.setStatus("Reading %s…", rc.URI().Name())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			id, err := sh.s.AddPage(ctx, path)
			fyne.Do(func() {
				switch {
				case err != nil:
					sh.l.Error("upload page failed", slog.Any("err", err))
					dialog.ShowError(err, sh.w)
				case id == "":
					sh.setStatus("Upload discarded, the reader was closed")
				default:
					sh.setStatus("Page added")
				}
				sh.render()
			})
		}()
	}, sh.w)
	fd.SetFilter(fstorage.NewExtensionFileFilter(imageExtensions))
	fd.Show()
}

// Dialogs

// showWorkForm shows the open create or edit form. The cover is decoded in the background;
// a result that arrives after the dialog was closed is dropped by the session.
func (sh *shell) showWorkForm(title, description string) {
	f, ok := sh.s.Form()
	if !ok {
		return
	}
	titleEntry := widget.NewEntry()
	titleEntry.SetText(title)
	titleEntry.SetPlaceHolder("Title")
	titleEntry.Validator = ValidateTitle
	descEntry := widget.NewMultiLineEntry()
	descEntry.SetText(description)

	preview := canvas.NewImageFromResource(nil)
	preview.FillMode = canvas.ImageFillContain
	preview.SetMinSize(fyne.NewSize(120, 180))
	coverState := widget.NewLabel(CoverText(f.Preview))
	setPreview := func(uri string) {
		coverState.SetText(CoverText(uri))
		if png, err := CoverPreview(uri, 120, 180); err == nil {
			preview.Resource = fyne.NewStaticResource("cover.png", png)
			preview.Refresh()
		}
	}
	setPreview(f.Preview)

	choose := widget.NewButton("Choose cover…", func() {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil || rc == nil {
				return
			}
			path := rc.URI().Path()
			_ = rc.Close()
			coverState.SetText("Reading image…")
			go func() {
				applied, err := sh.s.AttachCover(context.Background(), path)
				fyne.Do(func() {
					if err != nil {
						dialog.ShowError(err, sh.w)
					}
					if cur, open := sh.s.Form(); open {
						if applied {
							setPreview(cur.Preview)
						} else {
							coverState.SetText(CoverText(cur.Preview))
						}
					}
				})
			}()
		}, sh.w)
		fd.SetFilter(fstorage.NewExtensionFileFilter(imageExtensions))
		fd.Show()
	})

	form := dialog.NewForm(FormTitle(f), "Save", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Title", titleEntry),
		widget.NewFormItem("Description", descEntry),
		widget.NewFormItem("Cover", container.NewHBox(preview, container.NewVBox(coverState, choose))),
	}, func(ok bool) {
		if !ok {
			sh.s.CancelForm()
			sh.render()
			return
		}
		if _, err := sh.s.SubmitForm(titleEntry.Text, descEntry.Text); err != nil {
			// the session keeps the form and its cover; show it again
			sh.showWorkForm(titleEntry.Text, descEntry.Text)
			return
		}
		sh.setStatus("Saved %q", titleEntry.Text)
		sh.render()
	}, sh.w)
	form.Resize(fyne.NewSize(520, 420))
	form.Show()
}

func (sh *shell) confirmDeleteItem(d domain.Kind, workID, itemID string) {
	sh.s.RequestDeleteItem(d, workID, itemID)
	sh.confirmPending()
}

// confirmPending asks about the pending delete and resolves it either way.
func (sh *shell) confirmPending() {
	t, ok := sh.s.PendingDelete()
	if !ok {
		return
	}
	title, msg := ConfirmText(t, sh.s.Library(t.Domain))
	confirm := dialog.NewConfirm(title, msg, func(ok bool) {
		if !ok {
			sh.s.CancelDelete()
			return
		}
		if sh.s.ConfirmDelete() {
			sh.setStatus("Deleted")
		}
		sh.render()
	}, sh.w)
	confirm.SetDismissText("Cancel")
	confirm.SetConfirmText("Delete")
	confirm.Show()
}

func (sh *shell) exportWork(w domain.Work, f export.Format) {
	save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, sh.w)
			return
		}
		if uc == nil {
			return
		}
		outPath := uc.URI().Path()
		_ = uc.Close()
		switch f {
		case export.FormatPDF:
			err = export.ExportNovelPDF(w, outPath, export.PDFOptions{})
		case export.FormatEPUB:
			err = export.ExportNovelEPUB(w, outPath, export.EPUBOptions{})
		case export.FormatCBZ:
			var rep export.CBZReport
			rep, err = export.ExportComicCBZ(w, outPath, export.CBZOptions{})
			if err == nil && len(rep.Skipped) > 0 {
				sh.setStatus("%d pages without an embedded image were skipped", len(rep.Skipped))
			}
		}
		if err != nil {
			dialog.ShowError(err, sh.w)
			return
		}
		dialog.ShowInformation("Export", "Exported to "+outPath, sh.w)
	}, sh.w)
	save.SetFileName(export.FileName(w, f))
	save.SetFilter(fstorage.NewExtensionFileFilter([]string{"." + string(f)}))
	save.Show()
}

// showThumb loads a cached thumbnail into img without blocking the UI thread.
func (sh *shell) showThumb(img *canvas.Image, d domain.Kind, workID, itemID string, w, h int) {
	go func() {
		png, err := sh.s.Thumbnail(context.Background(), d, workID, itemID, w, h)
		if err != nil {
			sh.l.Debug("thumbnail failed", slog.String("work", workID), slog.Any("err", err))
			return
		}
		fyne.Do(func() {
			img.Resource = fyne.NewStaticResource(workID+itemID+".png", png)
			img.Refresh()
		})
	}()
}

func (sh *shell) menu() *fyne.MainMenu {
	newWork := fyne.NewMenuItem("New…", func() {
		d := sh.s.View().Domain
		sh.s.OpenCreateForm(d)
		sh.showWorkForm("", "")
	})
	home := fyne.NewMenuItem("Home", func() {
		for v := sh.s.View().View; v != domain.ViewShelf && v != domain.ViewGallery; v = sh.s.View().View {
			sh.s.Back()
		}
		sh.render()
	})
	exportAll := fyne.NewMenuItem("Export Library…", func() {
		dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			d := sh.s.View().Domain
			paths, err := export.ExportLibrary(d, sh.s.Library(d), export.BatchOptions{OutDir: uri.Path()})
			if err != nil {
				dialog.ShowError(err, sh.w)
				return
			}
			dialog.ShowInformation("Export", fmt.Sprintf("Wrote %d files to %s", len(paths), uri.Path()), sh.w)
		}, sh.w).Show()
	})
	fileMenu := fyne.NewMenu("File", home, newWork, fyne.NewMenuItemSeparator(), exportAll)

	aboutItem := fyne.NewMenuItem("About draftbook", func() {
		exe, _ := os.Executable()
		info := fmt.Sprintf("draftbook\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe)
		dialog.ShowInformation("Installation Environment", info, sh.w)
	})
	return fyne.NewMainMenu(fileMenu, fyne.NewMenu("About", aboutItem))
}

// variantTheme forces the light or dark variant of the wrapped theme.
type variantTheme struct {
	fyne.Theme
	dark bool
}

func (t variantTheme) Color(n fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	if t.dark {
		return t.Theme.Color(n, theme.VariantDark)
	}
	return t.Theme.Color(n, theme.VariantLight)
}
