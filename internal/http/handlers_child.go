package http

import (
	"net/http"
	"strconv"
	"time"

	"taschengeld/internal/log"
)

func weekdayOptions() []weekdayOption {
	// Monday first, the way German calendars print the week.
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	out := make([]weekdayOption, 0, len(order))
	for _, d := range order {
		out = append(out, weekdayOption{Value: int(d), Name: weekdayName(d)})
	}
	return out
}

func (s *Server) renderChildForm(w http.ResponseWriter, r *http.Request, status int, form ChildForm, errMsg string) {
	title := "Kind anlegen"
	if form.ID != 0 {
		title = form.Name + " bearbeiten"
	}
	data := s.page(r, title)
	data.Form = form
	data.Error = errMsg
	data.Weekdays = weekdayOptions()
	s.render(w, r, status, "child_form.html", data)
}

func (s *Server) handleNewChildForm(w http.ResponseWriter, r *http.Request) {
	s.renderChildForm(w, r, http.StatusOK, ChildForm{
		StartDate: s.ledger.Today().String(),
		PayoutDay: int(time.Monday),
	}, "")
}

func (s *Server) handleCreateChild(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(msgInvalidForm).Write(w)
		return
	}

	form, child, err := ParseChildForm(p, s.ledger.Today())
	if err == nil {
		child, err = s.ledger.CreateChild(r.Context(), child)
	}
	if err != nil {
		s.childFormError(w, r, form, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Child account created via form",
		log.FieldChildID, child.ID,
		log.FieldOperation, log.OpCreate)
	http.Redirect(w, r, "/kinder/"+strconv.FormatInt(child.ID, 10), http.StatusSeeOther)
}

func (s *Server) handleEditChildForm(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, msgChildNotFound, http.StatusNotFound)
		return
	}
	child, err := s.ledger.GetChild(r.Context(), id)
	if err != nil {
		msg, status, known := userMessage(err)
		if !known {
			s.logger.ErrorContext(r.Context(), "Child lookup failed", log.FieldChildID, id, log.FieldError, err)
		}
		http.Error(w, msg, status)
		return
	}
	s.renderChildForm(w, r, http.StatusOK, ChildFormFrom(child), "")
}

func (s *Server) handleUpdateChild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		http.Error(w, msgChildNotFound, http.StatusNotFound)
		return
	}
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(msgInvalidForm).Write(w)
		return
	}

	form, child, err := ParseChildForm(p, s.ledger.Today())
	form.ID, child.ID = id, id
	if err == nil {
		err = s.ledger.UpdateChild(r.Context(), child)
	}
	if err != nil {
		s.childFormError(w, r, form, err)
		return
	}

	s.logger.InfoContext(r.Context(), "Child account updated via form",
		log.FieldChildID, id,
		log.FieldOperation, log.OpUpdate)
	http.Redirect(w, r, "/kinder/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (s *Server) childFormError(w http.ResponseWriter, r *http.Request, form ChildForm, err error) {
	msg, status, known := userMessage(err)
	if !known {
		s.logger.ErrorContext(r.Context(), "Failed to save child", log.FieldChildID, form.ID, log.FieldError, err)
	}
	if status == http.StatusNotFound {
		http.Error(w, msg, status)
		return
	}
	s.renderChildForm(w, r, status, form, msg)
}
