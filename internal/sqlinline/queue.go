// Package sqlinline holds every SQL statement executed by the service. Each
// constant starts with a `--sql <uuid>` marker line consumed by
// infra.SQLRunner so logs reference statements by marker, never by SQL text.
package sqlinline

const itemColumns = `id, status, source_url, enhanced_url, caption, category, product,
       model, style, faithfulness, aspect_ratio, mode, target_at, slot_id,
       message_id, published_id, published_url, last_error,
       created_at, updated_at, processing_at, approval_requested_at,
       completed_at, failed_at, rejected_at, timed_out_at`

const QInsertItem = `--sql 7de2c1aa-4b6f-4f3a-9c0d-2f6a1d8e5b21
insert into story_queue (
    id, status, source_url, caption, category, product,
    model, style, faithfulness, aspect_ratio, mode, target_at, slot_id
) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
returning ` + itemColumns + `;
`

const QGetItem = `--sql 91b4e2d7-6c1f-4a8e-b3d5-0f7c4a92e1d8
select ` + itemColumns + `
from story_queue
where id = $1;
`

const QClaimNextPending = `--sql 5a21c7f3-8d4e-4b6a-9f02-c3e8d1b7a654
with next_item as (
    select id
    from story_queue
    where status = 'pending'
    order by created_at asc
    for update skip locked
    limit 1
),
claimed as (
    update story_queue
    set status = 'processing', processing_at = now(), updated_at = now()
    where id in (select id from next_item)
    returning ` + itemColumns + `
)
select * from claimed;
`

const QTransitionItem = `--sql 0c8e5d2f-1a7b-4c3e-8f69-b4d20a1e7c93
update story_queue
set status = $3,
    updated_at = now(),
    enhanced_url = coalesce($4, enhanced_url),
    published_id = coalesce($5, published_id),
    published_url = coalesce($6, published_url),
    last_error = coalesce($7, last_error),
    message_id = coalesce($8, message_id),
    target_at = coalesce($9, target_at),
    slot_id = coalesce($10, slot_id),
    processing_at = case when $3::text = 'processing' then now() else processing_at end,
    approval_requested_at = case when $3::text = 'awaiting_approval' then now() else approval_requested_at end,
    completed_at = case when $3::text = 'completed' then now() else completed_at end,
    failed_at = case when $3::text = 'failed' then now() else failed_at end,
    rejected_at = case when $3::text = 'rejected' then now() else rejected_at end,
    timed_out_at = case when $3::text = 'timeout' then now() else timed_out_at end
where id = $1 and status = $2;
`

const QSetEnhancement = `--sql e7a31f58-2c9d-4e6b-a1f0-8d5c3b2a9e47
update story_queue
set enhanced_url = coalesce($2, enhanced_url),
    last_error = coalesce($3, last_error),
    updated_at = now()
where id = $1;
`

const QTimedOutItems = `--sql 2b9d7e4a-5f18-4c6d-9a3b-e0f1c8d7b265
select ` + itemColumns + `
from story_queue
where status = 'awaiting_approval'
  and approval_requested_at is not null
  and approval_requested_at <= $1
order by approval_requested_at asc;
`

const QQueueStats = `--sql 6d3a8f1c-9e2b-4d7a-b5c8-1f0e9a4d3c72
select status, count(*)
from story_queue
group by status;
`
