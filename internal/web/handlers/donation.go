package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/jredh-dev/waypost/internal/donation"
	"github.com/jredh-dev/waypost/internal/scanner"
	"github.com/jredh-dev/waypost/pkg/models"
)

const maxPhotoBytes = 10 << 20

var errNoDonation = errors.New("no donation in progress")

// workflow returns the session's open donation, or nil.
func (h *Handler) workflow(sessionID string) *donation.Workflow {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.workflows[sessionID]
}

// scannerFor returns the session's scanner slot, creating it on first use.
func (h *Handler) scannerFor(sessionID string) *scanner.Slot {
	slot, ok := h.scanners[sessionID]
	if !ok {
		slot = scanner.NewSlot(nil)
		h.scanners[sessionID] = slot
	}
	return slot
}

// withWorkflow runs fn against the session's open donation.
func (h *Handler) withWorkflow(w http.ResponseWriter, r *http.Request, fn func(*donation.Workflow) error) {
	sess := mustSession(r)
	wf := h.workflow(sess.ID)
	if wf == nil {
		jsonError(w, errNoDonation.Error(), http.StatusNotFound)
		return
	}
	if err := fn(wf); err != nil {
		h.writeError(w, r, err, "Something went wrong. Please try again.")
		return
	}
	jsonOK(w, http.StatusOK, wf.Snapshot())
}

// StartDonation opens a donation in the scanning state. Any donation the
// session already had open is abandoned.
// POST /api/donations
func (h *Handler) StartDonation(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	h.mu.Lock()
	old := h.workflows[sess.ID]
	delete(h.workflows, sess.ID)
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}

	h.mu.Lock()
	wf, err := donation.New(r.Context(), donation.Deps{
		Backend:  h.backend,
		Geocoder: h.geocoder,
		Scanner:  h.scannerFor(sess.ID),
		Logger:   h.logger.With("session_id", sess.ID),
		Location: h.loc,
		Now:      h.now,
		Resolver: h.resolverOpts,
	}, sess)
	if err == nil {
		h.workflows[sess.ID] = wf
	}
	h.mu.Unlock()

	if err != nil {
		h.writeError(w, r, err, "Could not start a donation.")
		return
	}
	jsonOK(w, http.StatusCreated, wf.Snapshot())
}

// GetDonation returns the open donation.
// GET /api/donations
func (h *Handler) GetDonation(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(*donation.Workflow) error { return nil })
}

// EndDonation abandons the open donation and releases the scanner.
// DELETE /api/donations
func (h *Handler) EndDonation(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)

	h.mu.Lock()
	wf := h.workflows[sess.ID]
	delete(h.workflows, sess.ID)
	h.mu.Unlock()

	if wf != nil {
		wf.Close()
	}
	w.WriteHeader(http.StatusNoContent)
}

type scanReq struct {
	Payload string `json:"payload"`
}

// ScanDonation feeds a decoded QR payload to the donation.
// POST /api/donations/scan
func (h *Handler) ScanDonation(w http.ResponseWriter, r *http.Request) {
	var req scanReq
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.withWorkflow(w, r, func(wf *donation.Workflow) error {
		return wf.HandleScan(r.Context(), req.Payload)
	})
}

type formReq struct {
	Description *string `json:"description,omitempty"`
	Date        *string `json:"date,omitempty"`
	TimeSlot    *string `json:"time_slot,omitempty"`
}

// UpdateDonationForm sets any of the description, date and time slot.
// PUT /api/donations/form
func (h *Handler) UpdateDonationForm(w http.ResponseWriter, r *http.Request) {
	var req formReq
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.withWorkflow(w, r, func(wf *donation.Workflow) error {
		if req.Description != nil {
			if err := wf.SetDescription(*req.Description); err != nil {
				return err
			}
		}
		if req.Date != nil {
			if err := wf.SetDate(*req.Date); err != nil {
				return err
			}
		}
		if req.TimeSlot != nil {
			if err := wf.SetTimeSlot(*req.TimeSlot); err != nil {
				return err
			}
		}
		return nil
	})
}

// UploadDonationPhoto attaches the "photo" part of a multipart upload.
// POST /api/donations/photo
func (h *Handler) UploadDonationPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPhotoBytes+1<<20)
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		jsonError(w, "photo upload must be multipart and under 10 MB", http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		jsonError(w, "photo is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		jsonError(w, "could not read photo", http.StatusBadRequest)
		return
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	h.withWorkflow(w, r, func(wf *donation.Workflow) error {
		return wf.SetPhoto(models.Photo{
			Filename:    header.Filename,
			ContentType: contentType,
			Data:        data,
		})
	})
}

type addressReq struct {
	Text string `json:"text"`
}

// SetDonationAddress updates the typed address and schedules a lookup.
// PUT /api/donations/address
func (h *Handler) SetDonationAddress(w http.ResponseWriter, r *http.Request) {
	var req addressReq
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.withWorkflow(w, r, func(wf *donation.Workflow) error {
		return wf.SetAddressText(req.Text)
	})
}

type idReq struct {
	ID string `json:"id"`
}

// SelectDonationAddress picks a suggestion and loads nearby businesses.
// POST /api/donations/address/select
func (h *Handler) SelectDonationAddress(w http.ResponseWriter, r *http.Request) {
	var req idReq
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.withWorkflow(w, r, func(wf *donation.Workflow) error {
		return wf.SelectAddress(r.Context(), req.ID)
	})
}

// SelectDonationBusiness picks a drop-off business and loads its time slots.
// POST /api/donations/business
func (h *Handler) SelectDonationBusiness(w http.ResponseWriter, r *http.Request) {
	var req idReq
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	h.withWorkflow(w, r, func(wf *donation.Workflow) error {
		return wf.SelectBusiness(r.Context(), req.ID)
	})
}

// SubmitDonation validates and submits the donation. A backend failure is
// reported in the snapshot's error field with the workflow in the error state.
// POST /api/donations/submit
func (h *Handler) SubmitDonation(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *donation.Workflow) error {
		err := wf.Submit(r.Context())
		if err != nil && wf.State() == donation.StateError {
			return nil
		}
		return err
	})
}

// AcknowledgeDonation dismisses a submit error and returns to the form.
// POST /api/donations/ack
func (h *Handler) AcknowledgeDonation(w http.ResponseWriter, r *http.Request) {
	h.withWorkflow(w, r, func(wf *donation.Workflow) error {
		return wf.Acknowledge()
	})
}
